package db

import (
	"github.com/pkg/errors"

	"github.com/hrygo/feedbacksense/internal/profile"
	"github.com/hrygo/feedbacksense/store"
	"github.com/hrygo/feedbacksense/store/db/postgres"
	"github.com/hrygo/feedbacksense/store/db/sqlite"
)

// NewDBDriver creates new db driver based on profile.
// It returns a nil driver when persistence is disabled.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "":
		return nil, nil
	case "postgres":
		driver, err = postgres.NewDB(profile)
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	default:
		return nil, errors.Errorf("unknown db driver: %s", profile.Driver)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
