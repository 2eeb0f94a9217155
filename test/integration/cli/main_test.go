package cli_test

import (
	"context"
	"os"
	"testing"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/posest/test/integration/cli/support"
)

// scenarioInitializer gives every scenario its own temp directory and
// fixtures. Commands run in-process, so no binary is built first.
func scenarioInitializer(t *testing.T) func(*godog.ScenarioContext) {
	return func(sc *godog.ScenarioContext) {
		tc, err := support.NewTestContext()
		if err != nil {
			t.Fatalf("scenario setup: %v", err)
		}
		tc.RegisterCommonSteps(sc)
		tc.RegisterFixtureSteps(sc)

		sc.After(func(ctx context.Context, _ *godog.Scenario, _ error) (context.Context, error) {
			if err := tc.Cleanup(); err != nil {
				t.Logf("scenario cleanup: %v", err)
			}
			return ctx, nil
		})
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func TestFeatures(t *testing.T) {
	// A developer's own posest.yaml must not leak into scenarios.
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", home)

	opts := &godog.Options{
		Format:   envOr("GODOG_FORMAT", "pretty"),
		Tags:     os.Getenv("GODOG_TAGS"),
		Paths:    []string{"features"},
		Strict:   true,
		TestingT: t,
	}
	suite := godog.TestSuite{
		Name:                "posest-cli",
		ScenarioInitializer: scenarioInitializer(t),
		Options:             opts,
	}
	if status := suite.Run(); status != 0 {
		t.Fatalf("feature suite exited with status %d", status)
	}
}
