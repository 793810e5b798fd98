package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"donationledger/internal/infra"
	"donationledger/internal/sqlinline"
)

const (
	ProviderLedgerSigner = "ledger_signer"
)

type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// SignerKey returns the stored hex private key used to sign ledger
// transactions, or "" when none was stored.
func (s *Store) SignerKey(ctx context.Context) (string, error) {
	return s.Token(ctx, ProviderLedgerSigner)
}

func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

// SetSignerKey stores the signer key with its address as a property so the
// address can be audited without decoding the key.
func (s *Store) SetSignerKey(ctx context.Context, key, address string) error {
	key = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(key), "0x"))
	if key == "" {
		return errors.New("signer key is required")
	}
	return s.upsert(ctx, ProviderLedgerSigner, key, map[string]any{"address": address})
}

func (s *Store) upsert(ctx context.Context, provider, token string, props map[string]any) error {
	payload := props
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, token, raw)
	return err
}
