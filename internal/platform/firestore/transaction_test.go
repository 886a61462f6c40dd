package firestore

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
)

func TestResolveTxSettings(t *testing.T) {
	got := resolveTxSettings(nil)
	if got.attempts != defaultTxAttempts || got.timeout != defaultTxTimeout {
		t.Fatalf("unexpected defaults %+v", got)
	}

	got = resolveTxSettings([]TxOption{WithTxAttempts(2), WithTxTimeout(5 * time.Second), nil})
	if got.attempts != 2 || got.timeout != 5*time.Second {
		t.Fatalf("options not applied: %+v", got)
	}

	got = resolveTxSettings([]TxOption{WithTxAttempts(0), WithTxTimeout(-time.Second)})
	if got.attempts != defaultTxAttempts || got.timeout != defaultTxTimeout {
		t.Fatalf("non-positive values must keep defaults: %+v", got)
	}
}

func TestRunTransactionRequiresClient(t *testing.T) {
	err := RunTransaction(context.Background(), nil, func(context.Context, *firestore.Transaction) error { return nil })
	if err == nil {
		t.Fatal("expected error for nil client")
	}
}
