package commands

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"time"

	cryptoDomain "github.com/allisson/secretbroker/internal/crypto/domain"
	cryptoService "github.com/allisson/secretbroker/internal/crypto/service"
)

// KekOptions describes how a new KEK entry is produced.
type KekOptions struct {
	// KeyID names the KEK. Empty means "kek-YYYY-MM-DD".
	KeyID string
	// KMSKeyURI, when set, stores the entry as the KMS ciphertext of the key.
	// For local development use "base64key://<32-byte-base64-key>".
	KMSKeyURI string
	// KMSTimeout bounds the encryption call.
	KMSTimeout time.Duration
}

// RunCreateKek generates a 32-byte KEK and prints the KEKS and ACTIVE_KEK_ID values
// to configure. Key material is zeroed once encoded.
func RunCreateKek(ctx context.Context, kmsService cryptoService.KMSService, writer io.Writer, opts KekOptions) error {
	keyID, entry, err := newKekEntry(ctx, kmsService, opts)
	if err != nil {
		return err
	}

	printKekConfig(writer, opts.KMSKeyURI, entry, keyID)
	return nil
}

// RunRotateKek generates a new KEK and appends it to currentKeks so DEKs wrapped by
// the previous keys stay readable. After deploying the printed values, run rewrap-deks.
func RunRotateKek(
	ctx context.Context,
	kmsService cryptoService.KMSService,
	writer io.Writer,
	currentKeks string,
	opts KekOptions,
) error {
	entries, err := cryptoDomain.ParseKekEntries(currentKeks)
	if err != nil {
		return fmt.Errorf("invalid current KEKS: %w", err)
	}

	keyID, entry, err := newKekEntry(ctx, kmsService, opts)
	if err != nil {
		return err
	}
	for _, existing := range entries {
		if existing.ID == keyID {
			return fmt.Errorf("kek id %q is already in use", keyID)
		}
	}

	printKekConfig(writer, opts.KMSKeyURI, strings.TrimSpace(currentKeks)+","+entry, keyID)
	_, _ = fmt.Fprintln(writer, "# After deploying, run: app rewrap-deks")
	return nil
}

func newKekEntry(ctx context.Context, kmsService cryptoService.KMSService, opts KekOptions) (string, string, error) {
	keyID := opts.KeyID
	if keyID == "" {
		keyID = fmt.Sprintf("kek-%s", time.Now().UTC().Format("2006-01-02"))
	}
	if strings.ContainsAny(keyID, ":,") {
		return "", "", fmt.Errorf("kek id must not contain ':' or ','")
	}

	key := make([]byte, cryptoDomain.KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", "", fmt.Errorf("failed to generate kek: %w", err)
	}
	defer cryptoDomain.Zero(key)

	material := key
	if opts.KMSKeyURI != "" {
		keeper, err := kmsService.OpenKeeper(ctx, opts.KMSKeyURI)
		if err != nil {
			return "", "", fmt.Errorf("failed to open KMS keeper: %w", err)
		}
		defer func() { _ = keeper.Close() }()

		ciphertext, err := cryptoService.EncryptKek(ctx, keeper, key, opts.KMSTimeout)
		if err != nil {
			return "", "", err
		}
		material = ciphertext
	}

	return keyID, keyID + ":" + base64.StdEncoding.EncodeToString(material), nil
}

func printKekConfig(writer io.Writer, kmsKeyURI, keks, activeID string) {
	_, _ = fmt.Fprintln(writer, "# KEK configuration")
	_, _ = fmt.Fprintln(writer, "# Copy these environment variables to your .env file or secrets manager")
	_, _ = fmt.Fprintln(writer)
	if kmsKeyURI != "" {
		_, _ = fmt.Fprintf(writer, "KMS_KEY_URI=\"%s\"\n", kmsKeyURI)
	}
	_, _ = fmt.Fprintf(writer, "KEKS=\"%s\"\n", keks)
	_, _ = fmt.Fprintf(writer, "ACTIVE_KEK_ID=\"%s\"\n", activeID)
}
