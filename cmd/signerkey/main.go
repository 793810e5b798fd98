package main

import (
	"context"
	"crypto/ecdsa"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"donationledger/internal/adapter/repo"
	"donationledger/internal/infra"
	"donationledger/internal/infra/credentials"
)

func main() {
	var (
		keyFlag  string
		generate bool
		store    bool
	)
	flag.StringVar(&keyFlag, "key", "", "hex private key to import (falls back to SIGNER_PRIVATE_KEY)")
	flag.BoolVar(&generate, "generate", false, "generate a new key instead of importing one")
	flag.BoolVar(&store, "store", false, "persist the key in the integration_tokens table (requires DATABASE_URL)")
	flag.Parse()

	_ = godotenv.Load()

	key, err := resolveKey(keyFlag, generate)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()
	fmt.Printf("signer address: %s\n", address)

	if !store {
		if generate {
			fmt.Printf("private key: 0x%x\n", crypto.FromECDSA(key))
		}
		return
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required with -store")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create pool: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger := infra.NewLogger(&infra.Config{AppEnv: os.Getenv("APP_ENV")}, "signerkey")
	runner := infra.NewSQLRunner(pool, logger)
	if err := repo.NewMirrorRepository(runner).EnsureSchema(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to prepare schema: %v\n", err)
		os.Exit(1)
	}
	hexKey := fmt.Sprintf("%x", crypto.FromECDSA(key))
	if err := credentials.NewStore(runner).SetSignerKey(ctx, hexKey, address); err != nil {
		fmt.Fprintf(os.Stderr, "failed to persist signer key: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("signer key stored successfully")
}

func resolveKey(raw string, generate bool) (*ecdsa.PrivateKey, error) {
	if generate {
		key, err := crypto.GenerateKey()
		if err != nil {
			return nil, fmt.Errorf("generate key: %w", err)
		}
		return key, nil
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = strings.TrimSpace(os.Getenv("SIGNER_PRIVATE_KEY"))
	}
	if raw == "" {
		return nil, fmt.Errorf("a key is required via -key, SIGNER_PRIVATE_KEY or -generate")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(raw, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid key: %w", err)
	}
	return key, nil
}
