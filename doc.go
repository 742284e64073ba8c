// Package xsd validates XML instance documents against W3C XML Schema 1.0
// definitions and reports structured findings with paths, codes and
// suggestions.
//
// A Repository loads schema documents with their imports and includes,
// resolves every reference and answers type queries. A Validator pairs a
// resolved Repository with a Configuration and a RuleRegistry; each call
// to Validate runs an independent ValidationJob, so one Validator may be
// shared by concurrent goroutines.
//
//	repo := xsd.NewRepository()
//	if err := repo.AddSchemaFile("order.xsd"); err != nil {
//		return err
//	}
//	if err := repo.Parse(); err != nil {
//		return err
//	}
//	if err := repo.Resolve(); err != nil {
//		return err
//	}
//	v, err := xsd.NewValidator(repo, nil)
//	if err != nil {
//		return err
//	}
//	res, err := v.Validate(doc)
package xsd
