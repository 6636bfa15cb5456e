// Package loader triggers service and interceptor registration via blank imports.
// Import this package to ensure everything is registered before construction.
package loader

import (
	_ "github.com/MahdiBaghbani/huddle-go/internal/interceptors/ratelimit"
	_ "github.com/MahdiBaghbani/huddle-go/internal/services/api"
)
