package store

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
)

func TestTranslate(t *testing.T) {
	other := errors.New("boom")
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "nil", err: nil, want: nil},
		{name: "no rows", err: sql.ErrNoRows, want: ErrNotFound},
		{name: "wrapped no rows", err: fmt.Errorf("scan: %w", sql.ErrNoRows), want: ErrNotFound},
		{name: "unique violation", err: &pq.Error{Code: pqUniqueViolation}, want: ErrConflict},
		{name: "foreign key violation", err: &pq.Error{Code: pqForeignKeyViolation}, want: ErrNotFound},
		{name: "check violation", err: &pq.Error{Code: pqCheckViolation}, want: ErrConflict},
		{name: "other pq error", err: &pq.Error{Code: "42601"}, want: nil},
		{name: "passthrough", err: other, want: other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translate(tt.err)
			if tt.want == nil {
				if tt.err == nil && got != nil {
					t.Fatalf("translate(nil) = %v", got)
				}
				if tt.err != nil && got != tt.err {
					t.Fatalf("translate() = %v, want original error", got)
				}
				return
			}
			if !errors.Is(got, tt.want) {
				t.Fatalf("translate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClampPage(t *testing.T) {
	if offset, limit := clampPage(-5, 0); offset != 0 || limit != 20 {
		t.Fatalf("clampPage(-5, 0) = %d, %d", offset, limit)
	}
	if offset, limit := clampPage(10, 5); offset != 10 || limit != 5 {
		t.Fatalf("clampPage(10, 5) = %d, %d", offset, limit)
	}
}

// interestsRow fills only the interests column of a user row.
type interestsRow []byte

func (r interestsRow) Scan(dest ...any) error {
	for _, d := range dest {
		if b, ok := d.(*[]byte); ok {
			*b = []byte(r)
		}
	}
	return nil
}

func TestScanUserInterests(t *testing.T) {
	user, err := scanUser(interestsRow(`["sports","comedy"]`))
	if err != nil {
		t.Fatalf("scanUser: %v", err)
	}
	if len(user.Interests) != 2 || user.Interests[0] != "sports" {
		t.Fatalf("interests = %v", user.Interests)
	}

	user, err = scanUser(interestsRow(nil))
	if err != nil {
		t.Fatalf("scanUser(empty): %v", err)
	}
	if user.Interests == nil || len(user.Interests) != 0 {
		t.Fatalf("empty interests = %#v, want []", user.Interests)
	}

	if _, err := scanUser(interestsRow(`{"not":"a list"}`)); err == nil {
		t.Fatal("expected decode error for malformed interests")
	}
}
