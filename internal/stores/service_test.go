package stores

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/ordergenie-backend/pkg/db/dbtest"
	pkgerrors "github.com/angelmondragon/ordergenie-backend/pkg/errors"
)

func newService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(NewRepository(dbtest.Open(t)))
	require.NoError(t, err)
	return svc
}

func TestNewServiceRequiresRepo(t *testing.T) {
	if _, err := NewService(nil); err == nil {
		t.Fatal("expected error when repo missing")
	}
}

func TestCreateAndResolveByDomain(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	token := "shpat_123"

	store, err := svc.Create(ctx, CreateStoreInput{Name: "Acme", ShopifyDomain: " Acme.myshopify.com ", AccessToken: &token})
	require.NoError(t, err)
	require.Equal(t, "acme.myshopify.com", store.ShopifyDomain)

	found, err := svc.GetByDomain(ctx, "ACME.myshopify.com")
	require.NoError(t, err)
	require.Equal(t, store.ID, found.ID)

	_, err = svc.Create(ctx, CreateStoreInput{Name: "Again", ShopifyDomain: "acme.myshopify.com"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "got %v", err)

	_, err = svc.GetByDomain(ctx, "other.myshopify.com")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)
}

func TestCredentials(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	token := "shpat_abc"

	withToken, err := svc.Create(ctx, CreateStoreInput{Name: "A", ShopifyDomain: "a.myshopify.com", AccessToken: &token})
	require.NoError(t, err)
	creds, err := svc.Credentials(ctx, withToken.ID)
	require.NoError(t, err)
	require.Equal(t, "a.myshopify.com", creds.ShopDomain)
	require.Equal(t, "shpat_abc", creds.AccessToken)

	without, err := svc.Create(ctx, CreateStoreInput{Name: "B", ShopifyDomain: "b.myshopify.com"})
	require.NoError(t, err)
	_, err = svc.Credentials(ctx, without.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)

	_, err = svc.Credentials(ctx, uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)
}

func TestWarehousesListedByPriority(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	store, err := svc.Create(ctx, CreateStoreInput{Name: "A", ShopifyDomain: "a.myshopify.com"})
	require.NoError(t, err)

	_, err = svc.CreateWarehouse(ctx, CreateWarehouseInput{StoreID: store.ID, Name: "Overflow", Code: "ovf", Priority: 5})
	require.NoError(t, err)
	main, err := svc.CreateWarehouse(ctx, CreateWarehouseInput{StoreID: store.ID, Name: "Main", Code: "main", Priority: 1})
	require.NoError(t, err)
	require.Equal(t, "MAIN", main.Code)
	require.True(t, main.IsActive)

	list, err := svc.ListWarehouses(ctx, store.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, main.ID, list[0].ID)

	_, err = svc.CreateWarehouse(ctx, CreateWarehouseInput{StoreID: uuid.New(), Name: "X", Code: "x"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)
}
