// Package seed embeds the starter topic dictionary. A fresh store is filled
// from it on first start unless dictionary.seed_path points elsewhere.
//
// Usage:
//
//	dict, err := dictfile.Parse(seed.Topics)
package seed

import _ "embed"

//go:embed topics.yaml
var Topics []byte
