package commands

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	authDomain "github.com/allisson/secretbroker/internal/auth/domain"
	authUseCase "github.com/allisson/secretbroker/internal/auth/usecase"
)

const scopePromptHelp = "Format: secret:<read|write|revoke|rotate>:<owner_id>, or secret:*:* for admin"

// RunCreateClient registers a client. Scopes come from scopesFlag (comma separated) or
// from an interactive prompt when the flag is empty. The generated secret is printed
// once and never logged.
func RunCreateClient(
	ctx context.Context,
	clientUseCase authUseCase.ClientUseCase,
	logger *slog.Logger,
	io IOTuple,
	name string,
	isActive bool,
	scopesFlag string,
	format string,
) error {
	scopes, err := resolveScopes(io, scopesFlag)
	if err != nil {
		return err
	}

	output, err := clientUseCase.Create(ctx, &authDomain.CreateClientInput{
		Name:     name,
		IsActive: isActive,
		Scopes:   scopes,
	})
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	printIssuedSecret(io, format, output,
		"\nClient created successfully!",
		"Client ID: "+output.ID.String(),
		"Secret: "+output.PlainSecret,
		"\nIMPORTANT: The secret is shown only once. Store it securely.",
	)

	logger.Info("client created",
		slog.String("client_id", output.ID.String()),
		slog.String("name", name),
		slog.Bool("is_active", isActive),
		slog.Int("scopes", len(scopes)),
	)
	return nil
}

// RunUpdateClient replaces name, active flag and scopes. The secret is untouched.
func RunUpdateClient(
	ctx context.Context,
	clientUseCase authUseCase.ClientUseCase,
	logger *slog.Logger,
	io IOTuple,
	clientIDStr string,
	name string,
	isActive bool,
	scopesFlag string,
	format string,
) error {
	clientID, err := parseClientID(clientIDStr)
	if err != nil {
		return err
	}

	scopes, err := resolveScopes(io, scopesFlag)
	if err != nil {
		return err
	}

	input := &authDomain.UpdateClientInput{Name: name, IsActive: isActive, Scopes: scopes}
	if err := clientUseCase.Update(ctx, clientID, input); err != nil {
		return fmt.Errorf("failed to update client: %w", err)
	}

	if format == "json" {
		writeJSON(io.Writer, map[string]any{
			"client_id": clientID.String(),
			"name":      name,
			"is_active": isActive,
			"scopes":    scopes,
		})
	} else {
		_, _ = fmt.Fprintf(io.Writer, "Client updated successfully!\nClient ID: %s\nScopes: %s\n",
			clientID, strings.Join(scopes, ", "))
	}

	logger.Info("client updated", slog.String("client_id", clientID.String()))
	return nil
}

// RunUnlockClient clears a lockout left by repeated failed logins.
func RunUnlockClient(
	ctx context.Context,
	clientUseCase authUseCase.ClientUseCase,
	logger *slog.Logger,
	io IOTuple,
	clientIDStr string,
) error {
	clientID, err := parseClientID(clientIDStr)
	if err != nil {
		return err
	}

	if err := clientUseCase.Unlock(ctx, clientID); err != nil {
		return fmt.Errorf("failed to unlock client: %w", err)
	}

	_, _ = fmt.Fprintf(io.Writer, "Client %s unlocked\n", clientID)
	logger.Info("client unlocked", slog.String("client_id", clientID.String()))
	return nil
}

// RunRotateClientSecret issues a new secret and revokes every token of the client.
func RunRotateClientSecret(
	ctx context.Context,
	clientUseCase authUseCase.ClientUseCase,
	logger *slog.Logger,
	io IOTuple,
	clientIDStr string,
	format string,
) error {
	clientID, err := parseClientID(clientIDStr)
	if err != nil {
		return err
	}

	output, err := clientUseCase.RotateSecret(ctx, clientID)
	if err != nil {
		return fmt.Errorf("failed to rotate client secret: %w", err)
	}

	printIssuedSecret(io, format, output,
		fmt.Sprintf("Client %s has a new secret: %s", output.ID, output.PlainSecret),
		"Tokens issued with the previous secret are revoked.",
	)

	logger.Info("client secret rotated", slog.String("client_id", clientID.String()))
	return nil
}

func parseClientID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid client ID format: %w", err)
	}
	return id, nil
}

// printIssuedSecret writes a freshly issued secret as JSON or as the given text lines.
func printIssuedSecret(io IOTuple, format string, output *authDomain.CreateClientOutput, lines ...string) {
	if format == "json" {
		writeJSON(io.Writer, map[string]string{
			"client_id": output.ID.String(),
			"secret":    output.PlainSecret,
		})
		return
	}
	for _, line := range lines {
		_, _ = fmt.Fprintln(io.Writer, line)
	}
}

// resolveScopes returns the validated scopes from scopesFlag, or prompts for them.
func resolveScopes(io IOTuple, scopesFlag string) ([]string, error) {
	scopes := splitScopes(scopesFlag)
	if scopesFlag == "" {
		var err error
		if scopes, err = promptForScopes(io); err != nil {
			return nil, fmt.Errorf("failed to get scopes: %w", err)
		}
	}
	if err := authDomain.ValidateScopes(scopes); err != nil {
		return nil, err
	}
	return scopes, nil
}

// promptForScopes reads one scope per line until an empty line or EOF.
func promptForScopes(io IOTuple) ([]string, error) {
	_, _ = fmt.Fprintf(io.Writer, "\nEnter scopes for the client, one per line. Finish with an empty line.\n%s\n",
		scopePromptHelp)

	var scopes []string
	scanner := bufio.NewScanner(io.Reader)
	for {
		_, _ = fmt.Fprint(io.Writer, "Scope: ")
		if !scanner.Scan() {
			break
		}
		scope := strings.TrimSpace(scanner.Text())
		if scope == "" {
			break
		}
		scopes = append(scopes, scope)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read scope: %w", err)
	}
	return scopes, nil
}
