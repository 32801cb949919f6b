package deposit

import (
	"errors"
	"fmt"

	"github.com/livrasand/gitdeposit/internal/config"
	"github.com/livrasand/gitdeposit/internal/database"
	"github.com/livrasand/gitdeposit/internal/store"
)

// OpenStore builds the identity backend selected by STORE_BACKEND.
func OpenStore(cfg *config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case "supabase":
		if cfg.SupabaseURL == "" || cfg.SupabaseKey == "" {
			return nil, errors.New("SUPABASE_URL and SUPABASE_KEY are required for the supabase store")
		}
		return database.NewSupabaseClient(cfg.SupabaseURL, cfg.SupabaseKey), nil
	case "file", "":
		return store.OpenFileStore(cfg.StoreFile)
	}
	return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
}
