package handlers

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"donationledger/internal/middleware"
)

const (
	codeBadRequest            = "bad_request"
	codeConnectionUnavailable = "connection_unavailable"
	codeSubmissionRejected    = "submission_rejected"
	codeInvalidAmount         = "invalid_amount"
	codeInvalidName           = "invalid_name"
	codeInsufficientBalance   = "insufficient_balance"
	codeNotFound              = "not_found"
	codeTimeout               = "timeout"
	codeCancelled             = "cancelled"
	codeInternal              = "internal"
)

var messages = map[string]map[language.Tag]string{
	codeBadRequest: {
		language.English:    "invalid payload",
		language.Indonesian: "payload tidak valid",
	},
	codeConnectionUnavailable: {
		language.English:    "the ledger is unreachable, try again once the connection is restored",
		language.Indonesian: "ledger tidak dapat dijangkau, coba lagi setelah koneksi pulih",
	},
	codeSubmissionRejected: {
		language.English:    "the ledger rejected the transaction",
		language.Indonesian: "ledger menolak transaksi",
	},
	codeInvalidAmount: {
		language.English:    "amount must be a positive number",
		language.Indonesian: "jumlah harus berupa angka positif",
	},
	codeInvalidName: {
		language.English:    "campaign name is required",
		language.Indonesian: "nama kampanye wajib diisi",
	},
	codeInsufficientBalance: {
		language.English:    "the campaign has no balance to withdraw",
		language.Indonesian: "kampanye tidak memiliki saldo untuk ditarik",
	},
	codeNotFound: {
		language.English:    "not found",
		language.Indonesian: "tidak ditemukan",
	},
	codeTimeout: {
		language.English:    "the ledger did not confirm in time",
		language.Indonesian: "ledger tidak mengonfirmasi tepat waktu",
	},
	codeCancelled: {
		language.English:    "the request was cancelled before the ledger confirmed",
		language.Indonesian: "permintaan dibatalkan sebelum ledger mengonfirmasi",
	},
	codeInternal: {
		language.English:    "internal error",
		language.Indonesian: "terjadi kesalahan internal",
	},
}

var messageCatalog = func() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, byTag := range messages {
		for tag, text := range byTag {
			if err := b.SetString(tag, key, text); err != nil {
				panic(err)
			}
		}
	}
	return b
}()

// localize renders the message for code in the request locale.
func localize(locale, code string) string {
	p := message.NewPrinter(middleware.LocaleTag(locale), message.Catalog(messageCatalog))
	return p.Sprintf(message.Key(code, code))
}
