package achievement

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeCatalogFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "achievements.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFileParsesCatalog(t *testing.T) {
	path := writeCatalogFile(t, `
[[achievement]]
key = "marathon_month"
name = "Marathon Month"
description = "Run 42.2 km in a lifetime."
category = "distance"
tier = "bronze"
reward_points = 40

[achievement.condition]
operator = "sum"
metric = "distance_km"
category = "running"
target = 42.2

[[achievement]]
key = "dedicated"
name = "Dedicated"
category = "streak"
tier = "silver"
reward_points = 60

[achievement.condition]
operator = "streak"
target = 10
`)

	defs, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, defs, 2)

	require.Equal(t, "marathon_month", defs[0].Key)
	require.Equal(t, OpSum, defs[0].Condition.Operator)
	require.InDelta(t, 42.2, defs[0].Condition.Target, 1e-9)
	require.Equal(t, "running", defs[0].Condition.Category)

	require.Equal(t, OpStreak, defs[1].Condition.Operator)
}

func TestLoadFileRejectsMalformedTOML(t *testing.T) {
	path := writeCatalogFile(t, `[[achievement]
key = broken`)

	_, err := LoadFile(path)
	var catErr CatalogError
	require.ErrorAs(t, err, &catErr)
}

func TestLoadFileRejectsEmptyCatalog(t *testing.T) {
	path := writeCatalogFile(t, `# no achievements here`)

	_, err := LoadFile(path)
	var catErr CatalogError
	require.ErrorAs(t, err, &catErr)
}

func TestLoadFileMissingFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestValidateRejectsBadDefinitions(t *testing.T) {
	base := Definition{
		Key: "ok", Name: "OK", Category: "misc", Tier: "bronze", RewardPoints: 1,
		Condition: Condition{Operator: OpSum, Metric: "points", Target: 10},
	}

	for _, tc := range []struct {
		name   string
		mutate func(*Definition)
	}{
		{"missing key", func(d *Definition) { d.Key = "" }},
		{"unknown operator", func(d *Definition) { d.Condition.Operator = "eval" }},
		{"non-positive target", func(d *Definition) { d.Condition.Target = 0 }},
		{"sum without metric", func(d *Definition) { d.Condition.Metric = "" }},
		{"less_than on sum", func(d *Definition) { d.Condition.LessThan = true }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			def := base
			tc.mutate(&def)
			err := Validate([]Definition{def})
			var catErr CatalogError
			require.ErrorAs(t, err, &catErr)
		})
	}
}

func TestValidateRejectsDuplicateKeys(t *testing.T) {
	def := Definition{
		Key: "dup", Name: "Dup", Category: "misc", Tier: "bronze", RewardPoints: 1,
		Condition: Condition{Operator: OpStreak, Target: 3},
	}
	err := Validate([]Definition{def, def})
	var catErr CatalogError
	require.ErrorAs(t, err, &catErr)
	require.Equal(t, "dup", catErr.Key)
}

func TestDefaultCatalogIsValid(t *testing.T) {
	require.NoError(t, Validate(Default()))
}

func TestReloadKeepsOldCatalogOnFailure(t *testing.T) {
	catalog, err := NewCatalog(Default())
	require.NoError(t, err)
	before := len(catalog.Definitions())

	bad := []Definition{{Key: ""}}
	require.Error(t, catalog.Reload(bad))
	require.Len(t, catalog.Definitions(), before)

	good := []Definition{{
		Key: "fresh", Name: "Fresh", Category: "misc", Tier: "bronze", RewardPoints: 1,
		Condition: Condition{Operator: OpStreak, Target: 2},
	}}
	require.NoError(t, catalog.Reload(good))
	require.Len(t, catalog.Definitions(), 1)
}
