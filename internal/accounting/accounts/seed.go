package accounts

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Chart is a seedable chart of accounts, usually read from a YAML file:
//
//	accounts:
//	  - {code: "1000", name: Cash, type: ASSET, cash: true}
//	  - {code: "1100", name: Accounts Receivable, type: ASSET}
//	roles:
//	  CASH: "1000"
//	  AR: "1100"
type Chart struct {
	Accounts []ChartAccount    `yaml:"accounts"`
	Roles    map[string]string `yaml:"roles"`
}

// ChartAccount is one account definition within a Chart.
type ChartAccount struct {
	Code string      `yaml:"code"`
	Name string      `yaml:"name"`
	Type AccountType `yaml:"type"`
	Cash bool        `yaml:"cash"`
}

// LoadChart decodes and checks a YAML chart definition.
func LoadChart(r io.Reader) (Chart, error) {
	var chart Chart
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&chart); err != nil {
		return Chart{}, fmt.Errorf("accounts: decode chart: %w", err)
	}
	if len(chart.Accounts) == 0 {
		return Chart{}, fmt.Errorf("accounts: chart has no accounts")
	}
	seen := make(map[string]struct{}, len(chart.Accounts))
	for i, a := range chart.Accounts {
		if a.Code == "" || a.Name == "" {
			return Chart{}, fmt.Errorf("accounts: chart entry %d needs code and name", i)
		}
		if !a.Type.Valid() {
			return Chart{}, fmt.Errorf("accounts: chart entry %s has unknown type %q", a.Code, a.Type)
		}
		if a.Cash && a.Type != AccountTypeAsset {
			return Chart{}, fmt.Errorf("accounts: cash account %s must be an ASSET", a.Code)
		}
		if _, dup := seen[a.Code]; dup {
			return Chart{}, fmt.Errorf("accounts: chart repeats code %s", a.Code)
		}
		seen[a.Code] = struct{}{}
	}
	for role, code := range chart.Roles {
		if _, ok := seen[code]; !ok {
			return Chart{}, fmt.Errorf("accounts: role %s points at unknown code %s", role, code)
		}
	}
	return chart, nil
}
