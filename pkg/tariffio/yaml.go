// Package tariffio reads and writes the tariff YAML interchange format.
//
// A document carries an optional map of named applicability rules plus a
// list of tariffs; charges reference rules by name or inline their own.
// Import is atomic per tariff: a bad tariff is reported and skipped without
// affecting its siblings.
package tariffio

import (
	"fmt"

	"github.com/gridbill/gridbill/pkg/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type document struct {
	ApplicabilityRules map[string]ruleYAML `yaml:"applicability_rules,omitempty"`
	Tariffs            []tariffYAML        `yaml:"tariffs"`
}

type tariffYAML struct {
	Name            string               `yaml:"name"`
	Utility         string               `yaml:"utility"`
	EnergyCharges   []energyChargeYAML   `yaml:"energy_charges,omitempty"`
	DemandCharges   []demandChargeYAML   `yaml:"demand_charges,omitempty"`
	CustomerCharges []customerChargeYAML `yaml:"customer_charges,omitempty"`
}

type energyChargeYAML struct {
	Name          string    `yaml:"name"`
	RateUSDPerKWH string    `yaml:"rate_usd_per_kwh"`
	Rules         []ruleRef `yaml:"rules,omitempty"`
}

type demandChargeYAML struct {
	Name         string    `yaml:"name"`
	RateUSDPerKW string    `yaml:"rate_usd_per_kw"`
	PeakType     string    `yaml:"peak_type"`
	Rules        []ruleRef `yaml:"rules,omitempty"`
}

type customerChargeYAML struct {
	Name       string `yaml:"name"`
	AmountUSD  string `yaml:"amount_usd"`
	ChargeType string `yaml:"charge_type"`
}

// ruleYAML is the wire form of an applicability rule. Times are "HH:MM"
// local; dates are "YYYY-MM-DD" with the year ignored; absent booleans
// default to true.
type ruleYAML struct {
	PeriodStartTimeLocal string  `yaml:"period_start_time_local,omitempty"`
	PeriodEndTimeLocal   string  `yaml:"period_end_time_local,omitempty"`
	AppliesStartDate     string  `yaml:"applies_start_date,omitempty"`
	AppliesEndDate       string  `yaml:"applies_end_date,omitempty"`
	AppliesWeekdays      *bool   `yaml:"applies_weekdays,omitempty"`
	AppliesWeekends      *bool   `yaml:"applies_weekends,omitempty"`
	AppliesHolidays      *bool   `yaml:"applies_holidays,omitempty"`
}

// ruleRef is either the name of a shared rule or an inline rule definition.
type ruleRef struct {
	Name   string
	Inline *ruleYAML
}

func (r *ruleRef) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		return node.Decode(&r.Name)
	case yaml.MappingNode:
		r.Inline = &ruleYAML{}
		return node.Decode(r.Inline)
	}
	return fmt.Errorf("rule must be a name or a mapping (line %d)", node.Line)
}

func (r ruleRef) MarshalYAML() (any, error) {
	if r.Name != "" {
		return r.Name, nil
	}
	return r.Inline, nil
}

func (r ruleYAML) toRule() (types.ApplicabilityRule, error) {
	out := types.ApplicabilityRule{
		Weekdays: r.AppliesWeekdays == nil || *r.AppliesWeekdays,
		Weekends: r.AppliesWeekends == nil || *r.AppliesWeekends,
		Holidays: r.AppliesHolidays == nil || *r.AppliesHolidays,
	}
	var err error
	if r.PeriodStartTimeLocal != "" {
		if out.PeriodStart, err = types.ParseTimeOfDay(r.PeriodStartTimeLocal); err != nil {
			return out, err
		}
	}
	if r.PeriodEndTimeLocal != "" {
		if out.PeriodEnd, err = types.ParseTimeOfDay(r.PeriodEndTimeLocal); err != nil {
			return out, err
		}
	}
	if r.AppliesStartDate != "" {
		md, err := types.ParseMonthDay(r.AppliesStartDate)
		if err != nil {
			return out, err
		}
		out.AppliesStart = &md
	}
	if r.AppliesEndDate != "" {
		md, err := types.ParseMonthDay(r.AppliesEndDate)
		if err != nil {
			return out, err
		}
		out.AppliesEnd = &md
	}
	return out, out.Validate()
}

func fromRule(r types.ApplicabilityRule) ruleYAML {
	out := ruleYAML{
		PeriodStartTimeLocal: r.PeriodStart.String(),
		PeriodEndTimeLocal:   r.PeriodEnd.String(),
		AppliesWeekdays:      &r.Weekdays,
		AppliesWeekends:      &r.Weekends,
		AppliesHolidays:      &r.Holidays,
	}
	if r.AppliesStart != nil {
		out.AppliesStartDate = r.AppliesStart.String()
		out.AppliesEndDate = r.AppliesEnd.String()
	}
	return out
}

// TariffError collects the validation messages for one rejected tariff.
type TariffError struct {
	Tariff   string
	Messages []string
}

// ParseResult is the outcome of parsing a tariff document. Tariffs that
// failed validation appear in Errors and are absent from Tariffs.
type ParseResult struct {
	Tariffs []types.Tariff
	Errors  []TariffError
}

// Parse decodes a tariff YAML document. A document-level problem (bad
// syntax, missing top-level keys, duplicate rule names) fails the whole
// parse; per-tariff problems are isolated into the result's Errors.
func Parse(content []byte) (ParseResult, error) {
	var res ParseResult

	var doc document
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return res, fmt.Errorf("%w: invalid YAML: %v", types.ErrValidation, err)
	}
	if len(doc.Tariffs) == 0 {
		return res, fmt.Errorf("%w: tariffs list is empty or missing", types.ErrValidation)
	}

	named := make(map[string]types.ApplicabilityRule, len(doc.ApplicabilityRules))
	for name, ry := range doc.ApplicabilityRules {
		rule, err := ry.toRule()
		if err != nil {
			return res, fmt.Errorf("applicability rule %q: %w", name, err)
		}
		named[name] = rule
	}

	for _, ty := range doc.Tariffs {
		tariff, errs := resolveTariff(ty, named)
		if len(errs) > 0 {
			name := ty.Name
			if name == "" {
				name = "(unnamed)"
			}
			res.Errors = append(res.Errors, TariffError{Tariff: name, Messages: errs})
			continue
		}
		res.Tariffs = append(res.Tariffs, tariff)
	}
	return res, nil
}

func resolveTariff(ty tariffYAML, named map[string]types.ApplicabilityRule) (types.Tariff, []string) {
	var errs []string
	t := types.Tariff{Utility: ty.Utility, Name: ty.Name}
	if ty.Utility == "" {
		errs = append(errs, "missing required field: utility")
	}

	resolveRules := func(refs []ruleRef, where string) []types.ApplicabilityRule {
		rules := make([]types.ApplicabilityRule, 0, len(refs))
		for _, ref := range refs {
			if ref.Name != "" {
				rule, ok := named[ref.Name]
				if !ok {
					errs = append(errs, fmt.Sprintf("%s references unknown rule %q", where, ref.Name))
					continue
				}
				rules = append(rules, rule)
				continue
			}
			rule, err := ref.Inline.toRule()
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", where, err))
				continue
			}
			rules = append(rules, rule)
		}
		return rules
	}

	for _, cy := range ty.EnergyCharges {
		rate, err := decimal.NewFromString(cy.RateUSDPerKWH)
		if err != nil {
			errs = append(errs, fmt.Sprintf("energy charge %q: invalid rate %q", cy.Name, cy.RateUSDPerKWH))
			continue
		}
		t.EnergyCharges = append(t.EnergyCharges, types.EnergyCharge{
			Name:       cy.Name,
			RatePerKWH: rate,
			Rules:      resolveRules(cy.Rules, fmt.Sprintf("energy charge %q", cy.Name)),
		})
	}
	for _, cy := range ty.DemandCharges {
		rate, err := decimal.NewFromString(cy.RateUSDPerKW)
		if err != nil {
			errs = append(errs, fmt.Sprintf("demand charge %q: invalid rate %q", cy.Name, cy.RateUSDPerKW))
			continue
		}
		t.DemandCharges = append(t.DemandCharges, types.DemandCharge{
			Name:      cy.Name,
			RatePerKW: rate,
			PeakType:  types.PeakType(cy.PeakType),
			Rules:     resolveRules(cy.Rules, fmt.Sprintf("demand charge %q", cy.Name)),
		})
	}
	for _, cy := range ty.CustomerCharges {
		amount, err := decimal.NewFromString(cy.AmountUSD)
		if err != nil {
			errs = append(errs, fmt.Sprintf("customer charge %q: invalid amount %q", cy.Name, cy.AmountUSD))
			continue
		}
		chargeType := types.CustomerChargeType(cy.ChargeType)
		if cy.ChargeType == "" {
			chargeType = types.CustomerChargeMonthly
		}
		t.CustomerCharges = append(t.CustomerCharges, types.CustomerCharge{
			Name:       cy.Name,
			Amount:     amount,
			ChargeType: chargeType,
		})
	}

	if len(errs) == 0 {
		if err := t.Validate(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) == 0 {
		t.EnsureChargeIDs()
	}
	return t, errs
}

// Export serialises tariffs back to the YAML interchange form. Rules are
// emitted inline; rates keep their exact decimal representation.
// Re-importing the output yields equivalent tariffs.
func Export(tariffs []types.Tariff) ([]byte, error) {
	doc := document{
		Tariffs: lo.Map(tariffs, func(t types.Tariff, _ int) tariffYAML {
			ty := tariffYAML{Name: t.Name, Utility: t.Utility}
			for _, c := range t.EnergyCharges {
				ty.EnergyCharges = append(ty.EnergyCharges, energyChargeYAML{
					Name:          c.Name,
					RateUSDPerKWH: c.RatePerKWH.String(),
					Rules:         inlineRefs(c.Rules),
				})
			}
			for _, c := range t.DemandCharges {
				ty.DemandCharges = append(ty.DemandCharges, demandChargeYAML{
					Name:         c.Name,
					RateUSDPerKW: c.RatePerKW.String(),
					PeakType:     string(c.PeakType),
					Rules:        inlineRefs(c.Rules),
				})
			}
			for _, c := range t.CustomerCharges {
				ty.CustomerCharges = append(ty.CustomerCharges, customerChargeYAML{
					Name:       c.Name,
					AmountUSD:  c.Amount.String(),
					ChargeType: string(c.ChargeType),
				})
			}
			return ty
		}),
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tariffs: %w", err)
	}
	return out, nil
}

func inlineRefs(rules []types.ApplicabilityRule) []ruleRef {
	return lo.Map(rules, func(r types.ApplicabilityRule, _ int) ruleRef {
		ry := fromRule(r)
		return ruleRef{Inline: &ry}
	})
}
