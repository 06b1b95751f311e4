package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestIssuer(t *testing.T) *Issuer {
	t.Helper()
	issuer, err := NewIssuer("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	return issuer
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	issuer := newTestIssuer(t)
	want := Identity{ID: "u-1", Role: "admin", Username: "alice"}

	token, err := issuer.Issue(want)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	got, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got != want {
		t.Fatalf("Verify = %+v, want %+v", got, want)
	}
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	issuer := newTestIssuer(t)
	other, err := NewIssuer("other-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}

	token, err := other.Issue(Identity{ID: "u-1", Role: "user"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := issuer.Verify(token); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("Verify error = %v, want ErrInvalidCredential", err)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	issuer := newTestIssuer(t)
	issued := time.Now().Add(-2 * time.Hour)
	issuer.now = func() time.Time { return issued }

	token, err := issuer.Issue(Identity{ID: "u-1", Role: "user"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	issuer.now = time.Now
	if _, err := issuer.Verify(token); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("Verify error = %v, want ErrInvalidCredential", err)
	}
}

func TestVerifyMalformed(t *testing.T) {
	issuer := newTestIssuer(t)

	if _, err := issuer.Verify(""); !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("Verify(\"\") error = %v, want ErrMissingCredential", err)
	}
	if _, err := issuer.Verify("not.a.jwt"); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("Verify(garbage) error = %v, want ErrInvalidCredential", err)
	}
}

func TestNewIssuerRequiresSecret(t *testing.T) {
	if _, err := NewIssuer("  ", time.Hour); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestVerifyRequest(t *testing.T) {
	issuer := newTestIssuer(t)
	token, err := issuer.Issue(Identity{ID: "u-9", Role: "user", Username: "bob"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	tests := []struct {
		name    string
		header  string
		wantErr error
	}{
		{name: "valid", header: "Bearer " + token},
		{name: "lowercase scheme", header: "bearer " + token},
		{name: "missing", header: "", wantErr: ErrMissingCredential},
		{name: "wrong scheme", header: "Basic abc", wantErr: ErrInvalidCredential},
		{name: "scheme only", header: "Bearer   ", wantErr: ErrInvalidCredential},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			id, err := issuer.VerifyRequest(req)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if id.ID != "u-9" || id.Username != "bob" {
				t.Fatalf("identity = %+v", id)
			}
		})
	}
}

func TestContextRoundTrip(t *testing.T) {
	ctx := WithIdentity(context.Background(), Identity{ID: "u-1", Role: "user"})
	id, ok := FromContext(ctx)
	if !ok || id.ID != "u-1" {
		t.Fatalf("FromContext = %+v, %v", id, ok)
	}
	if _, ok := FromContext(context.Background()); ok {
		t.Fatal("expected no identity on empty context")
	}
}

func TestMiddlewareAttachesIdentityOrFailure(t *testing.T) {
	issuer := newTestIssuer(t)
	token, err := issuer.Issue(Identity{ID: "u-7", Role: "user", Username: "carol"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	tests := []struct {
		name    string
		header  string
		wantID  string
		wantErr error
	}{
		{name: "valid", header: "Bearer " + token, wantID: "u-7"},
		{name: "missing", wantErr: ErrMissingCredential},
		{name: "forged", header: "Bearer not-a-jwt", wantErr: ErrInvalidCredential},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				gotID  Identity
				gotOK  bool
				gotErr error
			)
			handler := issuer.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotID, gotOK = FromContext(r.Context())
				gotErr = FailureFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			handler.ServeHTTP(httptest.NewRecorder(), req)

			if tt.wantID != "" {
				if !gotOK || gotID.ID != tt.wantID {
					t.Fatalf("identity = %+v, %v", gotID, gotOK)
				}
				return
			}
			if gotOK {
				t.Fatalf("unexpected identity %+v", gotID)
			}
			if !errors.Is(gotErr, tt.wantErr) {
				t.Fatalf("failure = %v, want %v", gotErr, tt.wantErr)
			}
		})
	}
}
