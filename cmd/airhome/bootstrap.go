package main

import (
	"context"
	"errors"
	"fmt"

	"airhome/internal/app/homes"
	"airhome/internal/app/users"
	"airhome/internal/logging"
	"airhome/internal/store"
	"airhome/internal/validation"
)

const (
	demoEmail    = "host@airhome.test"
	demoPassword = "Demo@1234"
)

var demoHomes = []store.Home{
	{HouseName: "Lake Cabin", Price: 120, Location: "Lake Tahoe", Rating: 4.5, Description: "Wood cabin with a private jetty."},
	{HouseName: "City Loft", Price: 180, Location: "Mumbai", Rating: 4.2, Description: "Open plan loft close to the sea face."},
	{HouseName: "Desert Villa", Price: 240, Location: "Jaisalmer", Rating: 4.8, Description: "Sandstone villa with a rooftop terrace."},
}

// bootstrapDemoData creates a demo host and a few homes. It is a no-op when
// homes already exist.
func bootstrapDemoData(ctx context.Context, userSvc users.Service, homeSvc homes.Service) error {
	if err := ensureDemoUser(ctx, userSvc); err != nil {
		return err
	}
	return ensureDemoHomes(ctx, homeSvc)
}

func ensureDemoUser(ctx context.Context, userSvc users.Service) error {
	_, err := userSvc.Register(ctx, users.SignupForm{
		FirstName:       "Demo",
		LastName:        "Host",
		Email:           demoEmail,
		Password:        demoPassword,
		ConfirmPassword: demoPassword,
		UserType:        store.UserTypeHost,
		Terms:           "on",
	})
	var ve *validation.Error
	if errors.As(err, &ve) && ve.Has("email", "unique") {
		return nil
	}
	if err != nil {
		return fmt.Errorf("bootstrap demo user: %w", err)
	}
	logging.FromContext(ctx).Info().Str("email", demoEmail).Msg("created demo host")
	return nil
}

func ensureDemoHomes(ctx context.Context, homeSvc homes.Service) error {
	existing, err := homeSvc.List(ctx)
	if err != nil {
		return fmt.Errorf("list homes: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	for _, home := range demoHomes {
		if _, err := homeSvc.Create(ctx, home, nil); err != nil {
			return fmt.Errorf("bootstrap home %q: %w", home.HouseName, err)
		}
	}
	logging.FromContext(ctx).Info().Int("homes", len(demoHomes)).Msg("seeded demo homes")
	return nil
}
