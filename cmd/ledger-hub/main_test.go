package main

import (
	"bytes"
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/subcommands"

	"ledger/internal/config"
	"ledger/internal/hub"
	"ledger/internal/log"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func runCmd(t *testing.T, args ...string) (string, string, subcommands.ExitStatus) {
	t.Helper()
	var out, errOut bytes.Buffer
	stdout, stderr = &out, &errOut
	t.Cleanup(func() { stdout, stderr = os.Stdout, os.Stderr })

	fs := flag.NewFlagSet("ledger-hub", flag.ContinueOnError)
	c := subcommands.NewCommander(fs, "ledger-hub")
	register(c)
	if err := fs.Parse(args); err != nil {
		t.Fatal(err)
	}
	status := c.Execute(context.Background())
	return out.String(), errOut.String(), status
}

func TestMintKey(t *testing.T) {
	t.Setenv("HUB_JWT_SECRET", testSecret)

	out, errOut, status := runCmd(t, "mint-key", "-subject", "anna", "-households", "smiths, jones")
	if status != subcommands.ExitSuccess {
		t.Fatalf("status = %v, stderr = %s", status, errOut)
	}

	keys, err := hub.NewKeyManager(testSecret)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := keys.Validate(strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("minted key does not validate: %v", err)
	}
	if claims.Subject != "anna" || !claims.Allows("jones") || claims.Allows("others") {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestMintKey_Errors(t *testing.T) {
	t.Setenv("HUB_JWT_SECRET", testSecret)
	if _, _, status := runCmd(t, "mint-key"); status != subcommands.ExitUsageError {
		t.Errorf("missing subject status = %v", status)
	}

	t.Setenv("HUB_JWT_SECRET", "short")
	if _, _, status := runCmd(t, "mint-key", "-subject", "anna"); status != subcommands.ExitFailure {
		t.Errorf("short secret status = %v", status)
	}
}

func TestSplitList(t *testing.T) {
	if got := splitList(" a, ,b "); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("splitList() = %v", got)
	}
	if got := splitList(""); got != nil {
		t.Errorf("splitList(\"\") = %v", got)
	}
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	return l.Addr().String()
}

func TestServe_MemoryStore(t *testing.T) {
	cfg := &config.Config{
		HubJWTSecret:      testSecret,
		HubAllowedOrigins: []string{"*"},
		HubCacheTTL:       time.Second,
		HubRateLimit:      100,
	}
	addr := freeAddr(t)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- serve(ctx, cfg, addr, log.Discard()) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("healthz status = %d", resp.StatusCode)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("hub did not start: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve() did not return after cancel")
	}
}

func TestReplicaID(t *testing.T) {
	a, b := replicaID(), replicaID()
	if a == b || !strings.Contains(a, "-") {
		t.Errorf("replicaID() = %q, %q", a, b)
	}
}
