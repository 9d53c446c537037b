package module

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/josephgoksu/guidedmodules/types"
)

const profileV1 = `
key: profile
version: 1
title: Organization profile
questions:
  - {key: size, type: integer, title: Headcount}
`

const profileV2 = `
key: profile
version: 2
title: Organization profile
questions:
  - {key: size, type: integer, title: Headcount}
  - {key: sector, type: text, title: Sector}
`

const projectYAML = `
key: project
version: 1
title: Project
questions:
  - {key: org, type: module, title: Organization, module: profile}
  - {key: large, type: yesno, title: Large, ask_if: 'input.org.size > 100'}
`

func parseAll(t *testing.T, srcs ...string) []*Module {
	t.Helper()
	out := make([]*Module, 0, len(srcs))
	for _, s := range srcs {
		out = append(out, mustParse(t, s))
	}
	return out
}

func TestCatalog_VersionsAndSupersededBy(t *testing.T) {
	c := NewCatalog()
	if err := c.Replace(context.Background(), parseAll(t, profileV2, profileV1, projectYAML)); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	latest, err := c.Latest("profile")
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if latest.Version != 2 || latest.SupersededBy != nil {
		t.Errorf("Latest() = v%d supersededBy=%v, want v2 and nil", latest.Version, latest.SupersededBy)
	}

	v1, err := c.Get("profile", 1)
	if err != nil {
		t.Fatalf("Get(profile, 1) error = %v", err)
	}
	if v1.SupersededBy == nil || *v1.SupersededBy != 2 {
		t.Errorf("v1.SupersededBy = %v, want 2", v1.SupersededBy)
	}

	if got := len(c.Modules()); got != 2 {
		t.Errorf("Modules() len = %d, want 2", got)
	}
	if got := len(c.Versions("profile")); got != 2 {
		t.Errorf("Versions(profile) len = %d, want 2", got)
	}

	if _, err := c.Get("profile", 9); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("Get(profile, 9) error = %v, want not found", err)
	}
}

func TestCatalog_RejectsEditWithoutVersionBump(t *testing.T) {
	c := NewCatalog()
	ctx := context.Background()
	if err := c.Replace(ctx, parseAll(t, profileV1)); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	edited := strings.Replace(profileV1, "Headcount", "Employees", 1)
	err := c.Replace(ctx, parseAll(t, edited))
	if !errors.Is(err, types.ErrConfiguration) {
		t.Fatalf("Replace(edited) error = %v, want configuration error", err)
	}

	m, _ := c.Latest("profile")
	q, _ := m.Question("size")
	if q.Title != "Headcount" {
		t.Errorf("catalog changed after failed Replace: title = %q", q.Title)
	}

	if err := c.Replace(ctx, parseAll(t, profileV1)); err != nil {
		t.Errorf("Replace(identical) error = %v", err)
	}
}

func TestCatalog_DuplicateVersion(t *testing.T) {
	err := NewCatalog().Replace(context.Background(), parseAll(t, profileV1, profileV1))
	if err == nil || !strings.Contains(err.Error(), "defined twice") {
		t.Errorf("Replace() error = %v, want defined twice", err)
	}
}

func TestCatalog_CrossModuleChecks(t *testing.T) {
	ctx := context.Background()

	err := NewCatalog().Replace(ctx, parseAll(t, projectYAML))
	if err == nil || !strings.Contains(err.Error(), `answer-type module "profile" is not loaded`) {
		t.Errorf("Replace(without profile) error = %v", err)
	}

	badPath := strings.Replace(projectYAML, "input.org.size", "input.org.headcount", 1)
	err = NewCatalog().Replace(ctx, parseAll(t, profileV1, badPath))
	if err == nil || !strings.Contains(err.Error(), `undefined question "headcount"`) {
		t.Errorf("Replace(bad child path) error = %v", err)
	}
}
