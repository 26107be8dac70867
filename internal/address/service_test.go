package address

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

func TestResolveByIndex(t *testing.T) {
	conn := dbtest.New(t)
	svc, err := NewService(NewRepository(conn))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	user := dbtest.User(t, conn)
	base := time.Now().UTC()
	first := dbtest.Address(t, conn, user.ID, base.Add(-2*time.Hour))
	second := dbtest.Address(t, conn, user.ID, base.Add(-time.Hour))

	for idx, want := range map[int]uuid.UUID{1: first.ID, 2: second.ID} {
		idx := idx
		got, err := svc.Resolve(context.Background(), conn, user.ID, Selector{Index: &idx})
		if err != nil {
			t.Fatalf("index %d: %v", idx, err)
		}
		if got.ID != want {
			t.Fatalf("index %d: expected %s, got %s", idx, want, got.ID)
		}
	}

	for _, idx := range []int{0, 3} {
		idx := idx
		_, err := svc.Resolve(context.Background(), conn, user.ID, Selector{Index: &idx})
		if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("index %d: expected validation error, got %v", idx, err)
		}
		if msg := pkgerrors.As(err).Message(); msg != "Invalid address index. User has 2 address(es)." {
			t.Fatalf("unexpected message %q", msg)
		}
	}
}

func TestResolveByIDChecksOwnership(t *testing.T) {
	conn := dbtest.New(t)
	svc, _ := NewService(NewRepository(conn))
	owner := dbtest.User(t, conn)
	stranger := dbtest.User(t, conn)
	addr := dbtest.Address(t, conn, owner.ID, time.Now())

	got, err := svc.Resolve(context.Background(), conn, owner.ID, Selector{AddressID: &addr.ID})
	if err != nil || got.ID != addr.ID {
		t.Fatalf("expected own address, got %v %v", got, err)
	}
	if _, err := svc.Resolve(context.Background(), conn, stranger.ID, Selector{AddressID: &addr.ID}); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestResolveRequiresExactlyOneSelector(t *testing.T) {
	svc, _ := NewService(NewRepository(dbtest.New(t)))
	one := 1
	id := uuid.New()
	for _, sel := range []Selector{{}, {AddressID: &id, Index: &one}} {
		if _, err := svc.Resolve(context.Background(), nil, uuid.New(), sel); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("expected validation error for %+v, got %v", sel, err)
		}
	}
}

func TestCreateListDelete(t *testing.T) {
	conn := dbtest.New(t)
	svc, _ := NewService(NewRepository(conn))
	user := dbtest.User(t, conn)
	ctx := context.Background()

	if _, err := svc.Create(ctx, user.ID, CreateInput{City: "Nowhere"}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	blank := "  "
	created, err := svc.Create(ctx, user.ID, CreateInput{Line1: " 5 Elm ", Line2: &blank, City: "Austin", Region: "TX", PostalCode: "73301", Country: "us"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Line1 != "5 Elm" || created.Country != "US" || created.Line2 != nil || created.Label != "home" {
		t.Fatalf("unexpected normalisation: %+v", created)
	}

	list, err := svc.List(ctx, user.ID)
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v %v", list, err)
	}

	other := dbtest.User(t, conn)
	if err := svc.Delete(ctx, other.ID, created.ID); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found deleting someone else's address, got %v", err)
	}
	if err := svc.Delete(ctx, user.ID, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
}
