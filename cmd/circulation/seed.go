package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/AntonStoeckl/library-circulation/circulation"
	"github.com/AntonStoeckl/library-circulation/engine/copyregistry"
)

// seedNamespace derives stable ids so that seeding twice updates instead of duplicating.
var seedNamespace = uuid.MustParse("5b1f0c4e-6c1d-4c59-9a57-3f0d2b8f7e21")

type seedBook struct {
	title    string
	barcodes []string
}

var seedBooks = []seedBook{
	{title: "Dune", barcodes: []string{"DUNE-0001", "DUNE-0002"}},
	{title: "Neuromancer", barcodes: []string{"NEURO-0001"}},
	{title: "The Left Hand of Darkness", barcodes: []string{"LHOD-0001"}},
}

var seedMembers = []struct{ name, email string }{
	{name: "Ada Lovelace", email: "ada@example.com"},
	{name: "Grace Hopper", email: "grace@example.com"},
	{name: "Alan Turing", email: "alan@example.com"},
}

func seedID(kind, name string) uuid.UUID {
	return uuid.NewSHA1(seedNamespace, []byte(kind+"/"+name))
}

func newSeedCommand(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create a membership type, members, books and copies for local demos",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(cmd.Context(), *envFile, false)
			if err != nil {
				return err
			}

			defer func() { _ = rt.close() }()

			return seed(cmd.Context(), rt.store, cmd.OutOrStdout())
		},
	}
}

func seed(ctx context.Context, store circulation.Store, out io.Writer) error {
	membershipType := circulation.MembershipType{
		ID:       seedID("membership-type", "standard"),
		Name:     "Standard",
		MaxBooks: 5,
		LoanDays: 14,
	}

	err := store.WithinTx(ctx, func(ctx context.Context, tx circulation.Tx) error {
		if err := tx.SaveMembershipType(ctx, membershipType); err != nil {
			return err
		}

		for _, m := range seedMembers {
			member := circulation.Member{
				ID:               seedID("member", m.email),
				Email:            m.email,
				Name:             m.name,
				Balance:          decimal.Zero,
				MembershipTypeID: &membershipType.ID,
			}

			if existing, findErr := tx.FindMember(ctx, member.ID); findErr == nil {
				member.Balance = existing.Balance
			}

			if err := tx.SaveMember(ctx, member); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(out, "member  %s  %s\n", member.ID, member.Email)
		}

		for _, b := range seedBooks {
			book := circulation.Book{ID: seedID("book", b.title), Title: b.title}
			if err := tx.SaveBook(ctx, book); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(out, "book    %s  %s\n", book.ID, book.Title)
		}

		return nil
	})
	if err != nil {
		return err
	}

	addCopy := copyregistry.NewAddCopyHandler(store)

	for _, b := range seedBooks {
		for _, barcode := range b.barcodes {
			bookCopy, _, addErr := addCopy.Handle(ctx, copyregistry.BuildAddCopyCommand(seedID("book", b.title), barcode, timeNow()))

			switch {
			case errors.Is(addErr, circulation.ErrBarcodeAlreadyExists):
				_, _ = fmt.Fprintf(out, "copy    %s  already present\n", barcode)
			case addErr != nil:
				return addErr
			default:
				_, _ = fmt.Fprintf(out, "copy    %s  %s\n", bookCopy.ID, bookCopy.Barcode)
			}
		}
	}

	return nil
}
