package accounts

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/metrik/metrik/internal/platform/httpx"
	"github.com/metrik/metrik/internal/rbac"
	"github.com/metrik/metrik/internal/shared"
)

type memoryRepo struct {
	accounts map[string]Account
	used     map[string]bool
}

func newMemoryRepo(seed ...Account) *memoryRepo {
	r := &memoryRepo{accounts: make(map[string]Account), used: make(map[string]bool)}
	for _, a := range seed {
		r.accounts[a.ID] = a
	}
	return r
}

func (m *memoryRepo) List(_ context.Context, businessID string) ([]Account, error) {
	var out []Account
	for _, a := range m.accounts {
		if a.BusinessID == businessID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memoryRepo) Get(_ context.Context, businessID, id string) (Account, error) {
	a, ok := m.accounts[id]
	if !ok || a.BusinessID != businessID {
		return Account{}, ErrNotFound
	}
	return a, nil
}

func (m *memoryRepo) Insert(_ context.Context, a Account) error {
	for _, existing := range m.accounts {
		if existing.BusinessID == a.BusinessID && existing.Code == a.Code {
			return ErrDuplicateCode
		}
	}
	m.accounts[a.ID] = a
	return nil
}

func (m *memoryRepo) Update(_ context.Context, a Account) error {
	m.accounts[a.ID] = a
	return nil
}

func (m *memoryRepo) Delete(_ context.Context, _, id string) error {
	delete(m.accounts, id)
	return nil
}

func (m *memoryRepo) HasEntries(_ context.Context, _, id string) (bool, error) {
	return m.used[id], nil
}

type countingInvalidator struct{ calls int }

func (c *countingInvalidator) InvalidateLedgers(context.Context, string) error {
	c.calls++
	return nil
}

func seed() []Account {
	return []Account{
		{ID: "sales", BusinessID: "biz", Name: "Sales", Code: "SALES", Type: AccountTypeIncome, IsSystem: true},
		{ID: "acme", BusinessID: "biz", Name: "Acme Traders", Code: "ACME", Type: AccountTypeAsset, Group: "Sundry Debtors", Opening: Opening{Debit: 1500}},
	}
}

func TestOpeningNet(t *testing.T) {
	require.Equal(t, 1500.0, Opening{Debit: 1500}.Net())
	require.Equal(t, -200.1, Opening{Credit: 200.1}.Net())
	require.Zero(t, Opening{}.Net())
}

func TestValidate(t *testing.T) {
	a := seed()[1]
	require.NoError(t, a.Validate())
	a.Opening = Opening{Debit: 10, Credit: 5}
	require.ErrorIs(t, a.Validate(), ErrInvalidOpening)
	a = seed()[1]
	a.Type = "asset-ish"
	require.ErrorIs(t, a.Validate(), ErrInvalid)
}

func TestSystemAccountsAreProtected(t *testing.T) {
	svc := NewService(newMemoryRepo(seed()...), nil, nil)
	ctx := context.Background()

	sales := seed()[0]
	sales.Name = "Revenue"
	_, err := svc.Update(ctx, sales, "u1")
	require.ErrorIs(t, err, ErrSystemAccount)
	require.ErrorIs(t, err, shared.ErrForbidden)

	err = svc.Delete(ctx, "biz", "sales", "u1")
	require.ErrorIs(t, err, ErrSystemAccount)
}

func TestUpdateOpeningInvalidatesLedgers(t *testing.T) {
	inv := &countingInvalidator{}
	svc := NewService(newMemoryRepo(seed()...), nil, inv)
	ctx := context.Background()

	acme := seed()[1]
	acme.Name = "Acme Traders Pvt"
	_, err := svc.Update(ctx, acme, "u1")
	require.NoError(t, err)
	require.Zero(t, inv.calls)

	acme.Opening = Opening{Credit: 300}
	_, err = svc.Update(ctx, acme, "u1")
	require.NoError(t, err)
	require.Equal(t, 1, inv.calls)

	opening, err := svc.OpeningBalance(ctx, "biz", "acme")
	require.NoError(t, err)
	require.Equal(t, -300.0, opening)
}

func TestCreateAndDelete(t *testing.T) {
	repo := newMemoryRepo(seed()...)
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, Account{BusinessID: "biz", Name: " Rent ", Code: "rent", Type: AccountTypeExpense}, "u1")
	require.NoError(t, err)
	require.Equal(t, "Rent", created.Name)
	require.Equal(t, "RENT", created.Code)
	require.False(t, created.IsSystem)

	_, err = svc.Create(ctx, Account{BusinessID: "biz", Name: "Rent 2", Code: "RENT", Type: AccountTypeExpense}, "u1")
	require.ErrorIs(t, err, ErrDuplicateCode)

	repo.used["acme"] = true
	require.ErrorIs(t, svc.Delete(ctx, "biz", "acme", "u1"), ErrInUse)
	require.NoError(t, svc.Delete(ctx, "biz", created.ID, "u1"))
	_, err = svc.Get(ctx, "biz", created.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestHandlerStatusCodes(t *testing.T) {
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), NewService(newMemoryRepo(seed()...), nil, nil), httpx.NewValidator(), rbac.Middleware{})
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			sess := &shared.Session{UserID: "u1", BusinessID: "biz", Role: rbac.RoleOwner}
			next.ServeHTTP(w, req.WithContext(shared.ContextWithSession(req.Context(), sess)))
		})
	})
	h.MountRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/accounts/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Acme Traders")

	body := `{"name":"Revenue","code":"SALES","type":"income"}`
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/accounts/sales", strings.NewReader(body)))
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/accounts/sales", nil))
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/accounts/", strings.NewReader(`{"name":"X","code":"X","type":"other"}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), `"type"`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/accounts/acme", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
}
