package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/odyssey-erp/invoicer/internal/app"
	"github.com/odyssey-erp/invoicer/internal/invoiceclient"
	"github.com/odyssey-erp/invoicer/internal/invoices"
)

func main() {
	ctx := context.Background()
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := app.NewLogger(cfg)

	backend, closeBackend, err := app.OpenBackend(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer closeBackend()

	service := app.NewInvoiceService(cfg, backend, logger, nil)
	existing, err := service.List(ctx, invoices.ListFilter{})
	if err != nil {
		log.Fatalf("list invoices: %v", err)
	}
	if len(existing) > 0 {
		fmt.Printf("→ %d invoice(s) already present, skipping seed\n", len(existing))
		return
	}

	fmt.Println("→ Seeding invoices...")
	today := time.Now().UTC()
	for _, s := range samples(today) {
		inv, err := service.Create(ctx, s)
		if err != nil {
			log.Fatalf("seed invoice for %s: %v", s.ClientName, err)
		}
		fmt.Printf("  %s %-20s %-8s %s\n", inv.InvoiceNumber, inv.ClientName, inv.Status, invoiceclient.FormatAmount(inv.Total))
	}

	fmt.Println("✓ Seed complete at", time.Now().Format(time.RFC3339))
}

func samples(today time.Time) []invoices.Invoice {
	day := func(offset int) string {
		return today.AddDate(0, 0, offset).Format(invoices.DateLayout)
	}
	bank := func(inv invoices.Invoice) invoices.Invoice {
		inv.BankName = "First National Bank"
		inv.AccountNumber = "62000000000"
		inv.AccountOwner = "Studio Owner"
		inv.BranchCode = "250655"
		inv.PaymentTerms = invoiceclient.DefaultPaymentTerms
		return inv
	}
	return []invoices.Invoice{
		bank(invoices.Invoice{
			ClientName:    "Acme Studio",
			ClientEmail:   "billing@acme.test",
			ClientAddress: "1 Long Street, Cape Town",
			InvoiceDate:   day(-45),
			DueDate:       day(-15),
			Status:        invoices.StatusSent,
			LineItems: []invoices.LineItem{
				{Description: "Brand identity workshop", Quantity: 1, Rate: 8500},
				{Description: "Logo revisions", Quantity: 3, Rate: 750},
			},
		}),
		bank(invoices.Invoice{
			ClientName:  "Blue Harbour Cafe",
			ClientEmail: "owner@blueharbour.test",
			InvoiceDate: day(-20),
			DueDate:     day(10),
			Status:      invoices.StatusPaid,
			LineItems: []invoices.LineItem{
				{Description: "Social media campaign", Quantity: 1, Rate: 4200},
			},
		}),
		bank(invoices.Invoice{
			ClientName:  "Karoo Outdoor",
			InvoiceDate: day(0),
			DueDate:     day(30),
			Status:      invoices.StatusDraft,
			Notes:       "Press release drafting and distribution",
			LineItems: []invoices.LineItem{
				{Description: "Press release", Quantity: 2, Rate: 1800},
				{Description: "Media list", Quantity: 1, Rate: 950},
			},
		}),
	}
}
