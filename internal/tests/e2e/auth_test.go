//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	"github.com/thusconnect/apiserver/config"
	"github.com/thusconnect/apiserver/internal/db"
	"github.com/thusconnect/apiserver/internal/server"
)

const (
	serverPort = 18080
)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	root, err := repoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to locate repo root: %v\n", err)
		os.Exit(1)
	}

	if err := dockerCompose(ctx, root, "up", "-d"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start docker compose: %v\n", err)
		os.Exit(1)
	}

	if err := waitForPostgres(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "postgres not ready: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := runMigrations(root); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	srv, err := startServer(root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		_ = srv.Shutdown()
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	code := m.Run()

	_ = srv.Shutdown()
	_ = dockerCompose(context.Background(), root, "down")
	os.Exit(code)
}

type authResponse struct {
	Token    string `json:"token"`
	Redirect string `json:"redirect"`
	Identity struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Role string `json:"role"`
	} `json:"identity"`
}

func TestSeededDriverLifecycle(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)

	resp, err := login(t, baseURL, "40147078", "anything", "driver")
	if err != nil {
		t.Fatalf("login seeded driver: %v", err)
	}
	if resp.Identity.Name != "Jean Pierre" {
		t.Fatalf("unexpected identity name: %q", resp.Identity.Name)
	}
	if resp.Redirect != "/driver" {
		t.Fatalf("unexpected redirect: %q", resp.Redirect)
	}

	status, location, err := getNoRedirect(t, baseURL+"/driver", resp.Token)
	if err != nil {
		t.Fatalf("get /driver: %v", err)
	}
	if status != http.StatusOK {
		t.Fatalf("expected 200 on own subtree, got %d", status)
	}

	status, location, err = getNoRedirect(t, baseURL+"/admin", resp.Token)
	if err != nil {
		t.Fatalf("get /admin: %v", err)
	}
	if status != http.StatusTemporaryRedirect || location != "/driver" {
		t.Fatalf("expected 307 to /driver, got %d %q", status, location)
	}

	if err := logout(t, baseURL, resp.Token); err != nil {
		t.Fatalf("logout: %v", err)
	}

	status, location, err = getNoRedirect(t, baseURL+"/driver", resp.Token)
	if err != nil {
		t.Fatalf("get /driver after logout: %v", err)
	}
	if status != http.StatusTemporaryRedirect || location != "/login" {
		t.Fatalf("expected 307 to /login after logout, got %d %q", status, location)
	}
}

func TestLoginUnknownPhoneRejected(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)

	if _, err := login(t, baseURL, "000000", "anything", "driver"); err == nil {
		t.Fatal("expected unknown phone to be rejected")
	}
}

func TestRegisterThenLoginAgain(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	phone := fmt.Sprintf("9%d", time.Now().UnixNano())

	registered, err := register(t, baseURL, "Test Registrant", phone, "testpass123!")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if registered.Identity.Role != "driver" {
		t.Fatalf("expected default driver role, got %q", registered.Identity.Role)
	}

	// Registered identities carry a password hash; a wrong password must
	// be rejected and the right one accepted.
	if _, err := login(t, baseURL, phone, "wrong-password", "driver"); err == nil {
		t.Fatal("expected wrong password to be rejected")
	}
	again, err := login(t, baseURL, phone, "testpass123!", "driver")
	if err != nil {
		t.Fatalf("login after register: %v", err)
	}
	if again.Identity.ID != registered.Identity.ID {
		t.Fatalf("expected identity %s, got %s", registered.Identity.ID, again.Identity.ID)
	}
}

func login(t *testing.T, baseURL, phone, password, role string) (authResponse, error) {
	t.Helper()
	return postAuth(t, baseURL+"/auth/login", map[string]string{
		"phone":    phone,
		"password": password,
		"role":     role,
	}, http.StatusOK)
}

func register(t *testing.T, baseURL, name, phone, password string) (authResponse, error) {
	t.Helper()
	return postAuth(t, baseURL+"/auth/register", map[string]string{
		"name":     name,
		"phone":    phone,
		"email":    fmt.Sprintf("%s@example.com", phone),
		"password": password,
	}, http.StatusCreated)
}

func postAuth(t *testing.T, url string, payload map[string]string, wantStatus int) (authResponse, error) {
	t.Helper()

	body, err := json.Marshal(payload)
	if err != nil {
		return authResponse{}, err
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return authResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return authResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		msg, _ := io.ReadAll(resp.Body)
		return authResponse{}, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed authResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return authResponse{}, err
	}
	if parsed.Token == "" {
		return authResponse{}, errors.New("missing token in auth response")
	}
	return parsed, nil
}

func logout(t *testing.T, baseURL, token string) error {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, baseURL+"/auth/logout", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("logout status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

// getNoRedirect performs a GET without following redirects and returns
// the status and Location header.
func getNoRedirect(t *testing.T, url, token string) (int, string, error) {
	t.Helper()

	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return 0, "", err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, resp.Header.Get("Location"), nil
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("go.mod not found above working directory")
		}
		dir = parent
	}
}

func dockerCompose(ctx context.Context, root string, args ...string) error {
	cmd := exec.CommandContext(ctx, "docker", append([]string{"compose"}, args...)...)
	cmd.Dir = root
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func waitForPostgres(ctx context.Context) error {
	cfg := config.LoadConfig()
	conn, err := sql.Open("postgres", db.PostgresURL(cfg.Database))
	if err != nil {
		return err
	}
	defer conn.Close()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := conn.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres ping timeout: %w", err)
		case <-ticker.C:
		}
	}
}

func runMigrations(root string) error {
	cfg := config.LoadConfig()
	migrationsURL := "file://" + filepath.Join(root, "internal", "db", "migrations")

	migrator, err := migrate.New(migrationsURL, db.PostgresURL(cfg.Database))
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func startServer(root string) (*server.Server, error) {
	os.Setenv("SERVER_PORT", fmt.Sprint(serverPort))
	os.Setenv("SESSION_BACKEND", "file")
	os.Setenv("SESSION_DIR", filepath.Join(root, "data", "e2e-sessions"))
	if os.Getenv("JWT_SECRET") == "" {
		os.Setenv("JWT_SECRET", "e2e-test-secret")
	}

	srv, err := server.New(context.Background(), config.LoadConfig())
	if err != nil {
		return nil, err
	}
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "server stopped: %v\n", err)
		}
	}()
	return srv, nil
}

func waitForHealth(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 2 * time.Second}

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		resp, err := client.Get(url)
		if err == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return errors.New("health check timeout")
		case <-ticker.C:
		}
	}
}
