// Package storetest is a behavioural suite every store.Backend must pass.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airhome/internal/store"
	"airhome/internal/validation"
)

// Factory returns a fresh, empty backend. The suite closes it.
type Factory func(t *testing.T) store.Backend

// Run exercises the homes, favourites and users contracts.
func Run(t *testing.T, newBackend Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, b store.Backend)
	}{
		{"CreateAndGetHome", testCreateAndGetHome},
		{"CreateHomeValidation", testCreateHomeValidation},
		{"HomeMiss", testHomeMiss},
		{"ListHomesInsertionOrder", testListHomesOrder},
		{"UpdateHome", testUpdateHome},
		{"DeleteHomeCascades", testDeleteHomeCascades},
		{"FavouritesIdempotent", testFavouritesIdempotent},
		{"FavouritesPerOwner", testFavouritesPerOwner},
		{"FavouriteNeedsHome", testFavouriteNeedsHome},
		{"FavouriteRacesDelete", testFavouriteRacesDelete},
		{"Users", testUsers},
		{"CancelledContext", testCancelledContext},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			b := newBackend(t)
			t.Cleanup(func() { _ = b.Close() })
			tc.fn(t, b)
		})
	}
}

func lakeCabin() store.Home {
	return store.Home{
		HouseName:   "Lake Cabin",
		Price:       120,
		Location:    "Tahoe",
		Rating:      4.5,
		Photo:       "/uploads/abcdefghij-cabin.jpg",
		Description: "Quiet place by the water",
	}
}

func mustCreateHome(t *testing.T, b store.Backend, name string) store.Home {
	t.Helper()
	h := lakeCabin()
	h.HouseName = name
	created, err := b.CreateHome(context.Background(), h)
	require.NoError(t, err)
	return created
}

func testCreateAndGetHome(t *testing.T, b store.Backend) {
	ctx := context.Background()

	in := lakeCabin()
	in.ID = "client-chosen"
	created, err := b.CreateHome(ctx, in)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.NotEqual(t, "client-chosen", created.ID, "ids are assigned by the store")

	got, err := b.HomeByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)
	assert.Equal(t, "Lake Cabin", got.HouseName)
	assert.InDelta(t, 120, got.Price, 0.0001)
	assert.InDelta(t, 4.5, got.Rating, 0.0001)
}

func testCreateHomeValidation(t *testing.T, b store.Backend) {
	ctx := context.Background()

	_, err := b.CreateHome(ctx, store.Home{Price: 10, Rating: 3})
	var ve *validation.Error
	require.True(t, errors.As(err, &ve), "expected validation error, got %v", err)
	assert.True(t, ve.Has("houseName", "required"))
	assert.True(t, ve.Has("location", "required"))

	homes, err := b.ListHomes(ctx)
	require.NoError(t, err)
	assert.Empty(t, homes)
}

func testHomeMiss(t *testing.T, b store.Backend) {
	ctx := context.Background()

	for _, id := range []string{"does-not-exist", "999999", "65f0c0ffee0000000000abcd"} {
		_, err := b.HomeByID(ctx, id)
		assert.ErrorIs(t, err, store.ErrHomeNotFound, "id %q", id)
		assert.False(t, store.IsStorage(err), "miss must not look like a storage failure")
	}
	assert.ErrorIs(t, b.DeleteHome(ctx, "does-not-exist"), store.ErrHomeNotFound)
}

func testListHomesOrder(t *testing.T, b store.Backend) {
	ctx := context.Background()

	a := mustCreateHome(t, b, "Alpha")
	c := mustCreateHome(t, b, "Bravo")
	d := mustCreateHome(t, b, "Charlie")

	homes, err := b.ListHomes(ctx)
	require.NoError(t, err)
	require.Len(t, homes, 3)
	assert.Equal(t, []string{a.ID, c.ID, d.ID}, []string{homes[0].ID, homes[1].ID, homes[2].ID})
}

func testUpdateHome(t *testing.T, b store.Backend) {
	ctx := context.Background()
	h := mustCreateHome(t, b, "Lake Cabin")

	edit := h
	edit.ID = "ignored"
	edit.Price = 150
	edit.Description = ""
	updated, err := b.UpdateHome(ctx, h.ID, edit)
	require.NoError(t, err)
	assert.Equal(t, h.ID, updated.ID)

	got, err := b.HomeByID(ctx, h.ID)
	require.NoError(t, err)
	assert.InDelta(t, 150, got.Price, 0.0001)
	assert.Empty(t, got.Description)

	homes, err := b.ListHomes(ctx)
	require.NoError(t, err)
	assert.Len(t, homes, 1, "update must not insert")

	_, err = b.UpdateHome(ctx, "does-not-exist", edit)
	assert.ErrorIs(t, err, store.ErrHomeNotFound)

	edit.HouseName = ""
	_, err = b.UpdateHome(ctx, h.ID, edit)
	var ve *validation.Error
	assert.True(t, errors.As(err, &ve))
}

func testDeleteHomeCascades(t *testing.T, b store.Backend) {
	ctx := context.Background()
	doomed := mustCreateHome(t, b, "Doomed")
	kept := mustCreateHome(t, b, "Kept")

	for _, owner := range []string{"", "user-1", "user-2"} {
		require.NoError(t, b.AddFavourite(ctx, owner, doomed.ID))
	}
	require.NoError(t, b.AddFavourite(ctx, "user-1", kept.ID))

	require.NoError(t, b.DeleteHome(ctx, doomed.ID))

	_, err := b.HomeByID(ctx, doomed.ID)
	assert.ErrorIs(t, err, store.ErrHomeNotFound)

	for _, owner := range []string{"", "user-2"} {
		ids, err := b.FavouriteHomeIDs(ctx, owner)
		require.NoError(t, err)
		assert.Empty(t, ids, "owner %q still references deleted home", owner)
	}
	ids, err := b.FavouriteHomeIDs(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{kept.ID}, ids)

	assert.ErrorIs(t, b.RemoveFavourite(ctx, "user-2", doomed.ID), store.ErrFavouriteNotFound)
}

func testFavouritesIdempotent(t *testing.T, b store.Backend) {
	ctx := context.Background()
	h := mustCreateHome(t, b, "Lake Cabin")

	require.NoError(t, b.AddFavourite(ctx, "", h.ID))
	assert.ErrorIs(t, b.AddFavourite(ctx, "", h.ID), store.ErrFavouriteExists)

	ids, err := b.FavouriteHomeIDs(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{h.ID}, ids)

	require.NoError(t, b.RemoveFavourite(ctx, "", h.ID))
	assert.ErrorIs(t, b.RemoveFavourite(ctx, "", h.ID), store.ErrFavouriteNotFound)

	ids, err = b.FavouriteHomeIDs(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, ids)

	// the home itself is untouched
	_, err = b.HomeByID(ctx, h.ID)
	assert.NoError(t, err)
}

func testFavouriteNeedsHome(t *testing.T, b store.Backend) {
	ctx := context.Background()
	h := mustCreateHome(t, b, "Gone")
	require.NoError(t, b.DeleteHome(ctx, h.ID))

	assert.ErrorIs(t, b.AddFavourite(ctx, "user-1", h.ID), store.ErrHomeNotFound)

	ids, err := b.FavouriteHomeIDs(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func testFavouriteRacesDelete(t *testing.T, b store.Backend) {
	ctx := context.Background()
	const n = 8

	homes := make([]store.Home, 0, n)
	for i := 0; i < n; i++ {
		homes = append(homes, mustCreateHome(t, b, "Contested"))
	}

	var wg sync.WaitGroup
	for _, h := range homes {
		wg.Add(2)
		go func(id string) {
			defer wg.Done()
			err := b.AddFavourite(ctx, "user-1", id)
			if err != nil {
				assert.ErrorIs(t, err, store.ErrHomeNotFound)
			}
		}(h.ID)
		go func(id string) {
			defer wg.Done()
			assert.NoError(t, b.DeleteHome(ctx, id))
		}(h.ID)
	}
	wg.Wait()

	ids, err := b.FavouriteHomeIDs(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, ids, "favourites outlived their homes")
}

func testFavouritesPerOwner(t *testing.T, b store.Backend) {
	ctx := context.Background()
	first := mustCreateHome(t, b, "First")
	second := mustCreateHome(t, b, "Second")

	require.NoError(t, b.AddFavourite(ctx, "user-1", first.ID))
	require.NoError(t, b.AddFavourite(ctx, "user-1", second.ID))
	require.NoError(t, b.AddFavourite(ctx, "user-2", second.ID))

	ids, err := b.FavouriteHomeIDs(ctx, "user-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{first.ID, second.ID}, ids)

	ids, err = b.FavouriteHomeIDs(ctx, "user-2")
	require.NoError(t, err)
	assert.Equal(t, []string{second.ID}, ids)

	ids, err = b.FavouriteHomeIDs(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func testUsers(t *testing.T, b store.Backend) {
	ctx := context.Background()

	created, err := b.CreateUser(ctx, store.User{
		FirstName:    "Jane",
		LastName:     "Host",
		Email:        " Jane@Example.com ",
		PasswordHash: "$2a$12$abcdefghijklmnopqrstuv",
		UserType:     store.UserTypeHost,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "jane@example.com", created.Email)

	_, err = b.CreateUser(ctx, store.User{
		FirstName:    "Other",
		Email:        "JANE@example.com",
		PasswordHash: "$2a$12$zzzzzzzzzzzzzzzzzzzzzz",
	})
	assert.ErrorIs(t, err, store.ErrUserExists)

	byEmail, err := b.UserByEmail(ctx, "jane@EXAMPLE.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)
	assert.Equal(t, "$2a$12$abcdefghijklmnopqrstuv", byEmail.PasswordHash)
	assert.True(t, byEmail.IsHost())

	byID, err := b.UserByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, byEmail, byID)

	_, err = b.UserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, store.ErrUserNotFound)
	_, err = b.UserByID(ctx, "does-not-exist")
	assert.ErrorIs(t, err, store.ErrUserNotFound)
}

func testCancelledContext(t *testing.T, b store.Backend) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.CreateHome(ctx, lakeCabin())
	assert.True(t, store.IsStorage(err), "got %v", err)

	_, err = b.ListHomes(ctx)
	assert.True(t, store.IsStorage(err), "got %v", err)

	err = b.AddFavourite(ctx, "", "whatever")
	assert.True(t, store.IsStorage(err), "got %v", err)

	homes, err := b.ListHomes(context.Background())
	require.NoError(t, err)
	assert.Empty(t, homes, "nothing may be written on failure")
}
