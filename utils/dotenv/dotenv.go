package dotenv

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/joho/godotenv"
)

// Load .env from the working directory, falling back to the repository root.
// Missing files are not an error in prod where env vars come from the runtime.
func LoadDotEnvs() error {
	if _, err := os.Stat(".env"); err == nil {
		return godotenv.Load()
	}
	return nil
}

// Tests run with the package directory as cwd, walk up to the repo root where
// .env lives. Safe to call when no .env exists at all.
func LoadDotEnvsInTests() {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return
	}
	root := filepath.Dir(filepath.Dir(filepath.Dir(filename)))
	_ = godotenv.Load(filepath.Join(root, ".env"))
}
