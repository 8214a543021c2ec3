// Seeder plays the role of the producing services: it publishes realistic
// customer and invoice lifecycle events through the Publisher so the audit
// pipeline can be exercised end to end.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/factumarket/audit-trail/internal/publisher"
	"github.com/factumarket/audit-trail/internal/store"
)

var (
	count    = flag.Int("count", 50, "number of events to publish")
	interval = flag.Duration("interval", 200*time.Millisecond, "delay between events")
)

var customerActions = []string{"created", "fetched", "listed", "updated", "deleted"}
var invoiceActions = []string{"created", "fetched", "listed"}

func main() {
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	gofakeit.Seed(time.Now().UnixNano())

	natsURL := getenv("NATS_URL", "nats://localhost:4222")
	redisURL := os.Getenv("REDIS_URL")

	ctx := context.Background()

	var spool *publisher.Spool
	if redisURL != "" {
		redisStore, err := store.NewRedis(ctx, redisURL)
		if err != nil {
			logger.Error("failed to connect to redis, seeding without spool", "error", err)
		} else {
			defer redisStore.Close()
			spool = publisher.NewSpool(redisStore)
		}
	}

	customerPub := publisher.New(natsURL, "customer_service", spool, logger)
	invoicePub := publisher.New(natsURL, "invoice_service", spool, logger)

	if spool != nil {
		replayCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go customerPub.StartSpoolReplay(replayCtx, 5*time.Second)
	}

	logger.Info("seeding events", "count", *count, "interval", interval.String())

	for i := 0; i < *count; i++ {
		if rand.Intn(2) == 0 {
			action := customerActions[rand.Intn(len(customerActions))]
			customerPub.Publish(ctx, "customer."+action, fakeCustomer())
		} else {
			action := invoiceActions[rand.Intn(len(invoiceActions))]
			invoicePub.Publish(ctx, "invoice."+action, fakeInvoice())
		}
		time.Sleep(*interval)
	}

	logger.Info("seeding complete", "count", *count)
}

func fakeCustomer() map[string]any {
	return map[string]any{
		"id":    rand.Intn(1000) + 1,
		"name":  gofakeit.Name(),
		"email": gofakeit.Email(),
		"phone": gofakeit.Phone(),
	}
}

func fakeInvoice() map[string]any {
	amount := gofakeit.Price(10000, 5000000)
	return map[string]any{
		"id":          rand.Intn(1000) + 1,
		"customer_id": rand.Intn(1000) + 1,
		"amount":      amount,
		"tax":         fmt.Sprintf("%.2f", amount*0.19),
		"issued_at":   gofakeit.DateRange(time.Now().AddDate(0, -1, 0), time.Now()).Format("2006-01-02"),
		"status":      gofakeit.RandomString([]string{"issued", "paid", "void"}),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
