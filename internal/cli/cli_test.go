package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailtriage/pkg/rbac"
	"mailtriage/pkg/util"
)

// run executes the root command with args and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	// flag values live in package vars and survive between runs
	classifyBody, classifySender, classifyBuildings = "", "", ""
	tokenSubject, tokenRole, tokenTTL = "", rbac.RoleOperator, 24*time.Hour

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	return out.String(), err
}

func writeConfigDir(t *testing.T, baseYAML string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.yaml"), []byte(baseYAML), 0o600))
	t.Setenv("CONFIG_DIR", dir)
	t.Setenv("CONFIG_ENV", "local")
	t.Setenv("JWT_SECRET", "")
	return dir
}

func TestClassifyCommand(t *testing.T) {
	writeConfigDir(t, "folders:\n  properties: Immobili\n")
	path := filepath.Join(t.TempDir(), "buildings.json")
	require.NoError(t, os.WriteFile(path, []byte(`["Edificio A", "Condominio Rossi"]`), 0o600))

	out, err := run(t, "classify", "Fattura Edificio A - Ottobre", "Preventivo lavori", "Edificio A: info", "--buildings", path)
	require.NoError(t, err)

	header := lineWith(t, out, "DECISION")
	assert.Contains(t, header, "CONFIDENCE")

	invoice := lineWith(t, out, "Fattura Edificio A - Ottobre")
	assert.Contains(t, invoice, "Fatture")
	assert.Contains(t, invoice, "0.90")
	assert.Contains(t, invoice, "auto + task")
	assert.Contains(t, invoice, "Immobili/Edificio A/Fatture")

	quote := lineWith(t, out, "Preventivo lavori")
	assert.Contains(t, quote, "Preventivi")
	assert.Contains(t, quote, "0.70")
	assert.Contains(t, quote, "review")

	info := lineWith(t, out, "Edificio A: info")
	assert.Contains(t, info, "Immobili/Edificio A/Da Gestire")
	assert.NotContains(t, info, "task")
}

func lineWith(t *testing.T, out, substr string) string {
	t.Helper()
	for _, l := range strings.Split(out, "\n") {
		if strings.Contains(l, substr) {
			return l
		}
	}
	t.Fatalf("no line containing %q in:\n%s", substr, out)
	return ""
}

func TestTokenCommand(t *testing.T) {
	writeConfigDir(t, "jwt:\n  secret: s3cret\n")

	out, err := run(t, "token", "--subject", "bob", "--role", rbac.RoleViewer, "--ttl", "1h")
	require.NoError(t, err)

	claims, err := util.ParseJWT(strings.TrimSpace(out), "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "bob", claims.Subject)
	assert.Equal(t, rbac.RoleViewer, claims.Role)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestTokenCommandRejectsUnknownRole(t *testing.T) {
	writeConfigDir(t, "jwt:\n  secret: s3cret\n")

	_, err := run(t, "token", "--subject", "bob", "--role", "admin")
	assert.Error(t, err)
}

func TestTokenCommandNeedsSecret(t *testing.T) {
	writeConfigDir(t, "{}\n")

	_, err := run(t, "token", "--subject", "bob")
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "agent version dev")
}
