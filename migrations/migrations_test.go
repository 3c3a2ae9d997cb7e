package migrations_test

import (
	"errors"
	"io"
	"io/fs"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/JaimeStill/vertex-agent/migrations"
)

func TestMigrations_Ordered(t *testing.T) {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		t.Fatalf("iofs.New() error = %v", err)
	}
	defer src.Close()

	version, err := src.First()
	if err != nil {
		t.Fatalf("First() error = %v", err)
	}

	var versions []uint
	for {
		versions = append(versions, version)

		up, _, err := src.ReadUp(version)
		if err != nil {
			t.Fatalf("ReadUp(%d) error = %v", version, err)
		}
		up.Close()

		down, _, err := src.ReadDown(version)
		if err != nil {
			t.Fatalf("ReadDown(%d) error = %v", version, err)
		}
		down.Close()

		next, err := src.Next(version)
		if errors.Is(err, fs.ErrNotExist) {
			break
		}
		if err != nil {
			t.Fatalf("Next(%d) error = %v", version, err)
		}
		version = next
	}

	for i, v := range versions {
		if v != uint(i+1) {
			t.Errorf("versions[%d] = %d, want %d", i, v, i+1)
		}
	}
	if len(versions) != 5 {
		t.Errorf("len(versions) = %d, want 5", len(versions))
	}
}

func TestMigrations_ActiveDeploymentIndex(t *testing.T) {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		t.Fatalf("iofs.New() error = %v", err)
	}
	defer src.Close()

	r, _, err := src.ReadUp(2)
	if err != nil {
		t.Fatalf("ReadUp(2) error = %v", err)
	}
	defer r.Close()

	body, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"CREATE UNIQUE INDEX", "WHERE status = 'ACTIVE'"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("deployments migration missing %q", want)
		}
	}
}
