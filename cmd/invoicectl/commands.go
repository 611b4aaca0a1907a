package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/odyssey-erp/invoicer/internal/invoiceclient"
	"github.com/odyssey-erp/invoicer/internal/invoices"
	"github.com/odyssey-erp/invoicer/internal/platform/rdb"
	"github.com/odyssey-erp/invoicer/jobs"
)

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:      "invoicectl",
		Usage:     "manage invoices through the invoicer API",
		Writer:    out,
		ErrWriter: out,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "api", Value: "http://localhost:8080", EnvVars: []string{"INVOICER_API_URL"}, Usage: "API base URL including any base path"},
			&cli.StringFlag{Name: "token", EnvVars: []string{"INVOICER_API_TOKEN"}, Usage: "bearer token"},
			&cli.DurationFlag{Name: "timeout", Value: invoiceclient.DefaultTimeout, Usage: "per-request timeout"},
		},
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list invoices, newest first",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "status", Usage: "only invoices with this status"},
				},
				Action: listAction,
			},
			{
				Name:      "show",
				Usage:     "print one invoice",
				ArgsUsage: "<id>",
				Action:    showAction,
			},
			{
				Name:  "create",
				Usage: "create an invoice",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "client", Required: true, Usage: "client name"},
					&cli.StringFlag{Name: "email", Usage: "client e-mail"},
					&cli.StringFlag{Name: "address", Usage: "client address"},
					&cli.StringFlag{Name: "date", Usage: "invoice date (YYYY-MM-DD), default today"},
					&cli.StringFlag{Name: "due", Usage: "due date (YYYY-MM-DD)"},
					&cli.StringFlag{Name: "terms", Value: invoiceclient.DefaultPaymentTerms, Usage: "payment terms"},
					&cli.StringFlag{Name: "notes", Usage: "notes"},
					&cli.StringSliceFlag{Name: "item", Required: true, Usage: `line item "description:quantity:rate", repeatable`},
				},
				Action: createAction,
			},
			{
				Name:      "status",
				Usage:     "set the status of an invoice",
				ArgsUsage: "<id> <draft|sent|paid|overdue>",
				Action:    statusAction,
			},
			{
				Name:      "delete",
				Usage:     "delete an invoice",
				ArgsUsage: "<id>",
				Action:    deleteAction,
			},
			{
				Name:  "enqueue-sweep",
				Usage: "queue an overdue sweep on the worker",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "redis", Value: "127.0.0.1:6379", EnvVars: []string{"REDIS_ADDR"}, Usage: "asynq Redis address"},
					&cli.StringFlag{Name: "as-of", Usage: "reference day (YYYY-MM-DD), default the day it runs"},
				},
				Action: enqueueSweepAction,
			},
		},
	}
}

func clientFrom(c *cli.Context) *invoiceclient.Client {
	return invoiceclient.New(c.String("api"), c.String("token"), invoiceclient.WithTimeout(c.Duration("timeout")))
}

func listAction(c *cli.Context) error {
	client := clientFrom(c)
	var (
		items []invoices.Invoice
		err   error
	)
	if status := c.String("status"); status != "" {
		items, err = client.ListByStatus(c.Context, invoices.Status(status))
	} else {
		items, err = client.List(c.Context)
	}
	if err != nil {
		return err
	}
	renderList(c.App.Writer, items)
	return nil
}

func showAction(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return errors.New("show: invoice id required")
	}
	inv, err := clientFrom(c).Get(c.Context, id)
	if err != nil {
		return err
	}
	renderInvoice(c.App.Writer, *inv)
	return nil
}

func createAction(c *cli.Context) error {
	draft := invoiceclient.NewDraft(time.Now())
	draft.ClientName = c.String("client")
	draft.ClientEmail = c.String("email")
	draft.ClientAddress = c.String("address")
	draft.DueDate = c.String("due")
	draft.PaymentTerms = c.String("terms")
	draft.Notes = c.String("notes")
	if date := c.String("date"); date != "" {
		draft.InvoiceDate = date
	}
	items, err := parseItems(c.StringSlice("item"))
	if err != nil {
		return err
	}
	draft.LineItems = items

	inv, err := clientFrom(c).Create(c.Context, draft)
	if inv == nil {
		return err
	}
	renderInvoice(c.App.Writer, *inv)
	return err
}

func statusAction(c *cli.Context) error {
	id, status := c.Args().Get(0), invoices.Status(c.Args().Get(1))
	if id == "" || status == "" {
		return errors.New("status: usage: status <id> <status>")
	}
	if !status.Valid() {
		return fmt.Errorf("status: unknown status %q", status)
	}
	inv, err := clientFrom(c).UpdateStatus(c.Context, id, status)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(c.App.Writer, "%s %s\n", inv.InvoiceNumber, inv.Status)
	return nil
}

func deleteAction(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return errors.New("delete: invoice id required")
	}
	if err := clientFrom(c).Delete(c.Context, id); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(c.App.Writer, "deleted %s\n", id)
	return nil
}

func enqueueSweepAction(c *cli.Context) error {
	var asOf time.Time
	if raw := c.String("as-of"); raw != "" {
		parsed, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return fmt.Errorf("enqueue-sweep: invalid --as-of %q", raw)
		}
		asOf = parsed
	}
	client, err := jobs.NewClient(rdb.Options{Addr: c.String("redis")}.AsynqOpt())
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	info, err := client.EnqueueOverdueSweep(c.Context, asOf)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(c.App.Writer, "enqueued %s (%s)\n", info.ID, info.Queue)
	return nil
}

// parseItems reads "description:quantity:rate". The description may itself
// contain colons; quantity and rate are the last two fields.
func parseItems(raw []string) ([]invoices.LineItem, error) {
	items := make([]invoices.LineItem, 0, len(raw))
	for _, entry := range raw {
		parts := strings.Split(entry, ":")
		if len(parts) < 3 {
			return nil, fmt.Errorf("item %q: expected description:quantity:rate", entry)
		}
		n := len(parts)
		qty, err := strconv.ParseFloat(strings.TrimSpace(parts[n-2]), 64)
		if err != nil {
			return nil, fmt.Errorf("item %q: quantity: %w", entry, err)
		}
		rate, err := strconv.ParseFloat(strings.TrimSpace(parts[n-1]), 64)
		if err != nil {
			return nil, fmt.Errorf("item %q: rate: %w", entry, err)
		}
		items = append(items, invoices.LineItem{
			Description: strings.TrimSpace(strings.Join(parts[:n-2], ":")),
			Quantity:    qty,
			Rate:        rate,
		})
	}
	return items, nil
}

func renderList(w io.Writer, items []invoices.Invoice) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "NUMBER\tCLIENT\tDATE\tDUE\tSTATUS\tTOTAL\tID")
	for _, inv := range items {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			inv.InvoiceNumber, inv.ClientName, inv.InvoiceDate, dash(inv.DueDate),
			inv.Status, invoiceclient.FormatAmount(inv.Total), inv.ID)
	}
	_ = tw.Flush()
	_, _ = fmt.Fprintf(w, "%d invoice(s)\n", len(items))
}

func renderInvoice(w io.Writer, inv invoices.Invoice) {
	_, _ = fmt.Fprintf(w, "Invoice %s (%s)\n", inv.InvoiceNumber, inv.Status)
	_, _ = fmt.Fprintf(w, "ID:      %s\n", inv.ID)
	_, _ = fmt.Fprintf(w, "Client:  %s\n", inv.ClientName)
	if inv.ClientEmail != "" {
		_, _ = fmt.Fprintf(w, "Email:   %s\n", inv.ClientEmail)
	}
	if inv.ClientAddress != "" {
		_, _ = fmt.Fprintf(w, "Address: %s\n", inv.ClientAddress)
	}
	_, _ = fmt.Fprintf(w, "Date:    %s\n", inv.InvoiceDate)
	_, _ = fmt.Fprintf(w, "Due:     %s\n", dash(inv.DueDate))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	_, _ = fmt.Fprintln(tw, "DESCRIPTION\tQTY\tRATE\tAMOUNT\t")
	for _, item := range inv.LineItems {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n",
			item.Description, strconv.FormatFloat(item.Quantity, 'f', -1, 64),
			invoiceclient.FormatAmount(item.Rate), invoiceclient.FormatAmount(item.Amount().InexactFloat64()))
	}
	_ = tw.Flush()
	_, _ = fmt.Fprintf(w, "Subtotal: %s\n", invoiceclient.FormatAmount(inv.Subtotal))
	_, _ = fmt.Fprintf(w, "Total:    %s\n", invoiceclient.FormatAmount(inv.Total))
	if inv.PaymentTerms != "" {
		_, _ = fmt.Fprintf(w, "Terms:    %s\n", inv.PaymentTerms)
	}
	if inv.BankName != "" {
		_, _ = fmt.Fprintf(w, "Bank:     %s %s (%s) branch %s\n", inv.BankName, inv.AccountNumber, inv.AccountOwner, inv.BranchCode)
	}
	if inv.Notes != "" {
		_, _ = fmt.Fprintf(w, "Notes:    %s\n", inv.Notes)
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
