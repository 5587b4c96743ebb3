// Package manifest handles loading, defaulting, and validation of the
// stagehand manifest, the declaration of what a host must converge to
// before the app launches.
//
// Two file formats are supported:
//
//   - stagehand.json: JSONC (JSON with Comments), stripped with
//     github.com/tidwall/jsonc before parsing with encoding/json
//   - stagehand.yaml / stagehand.yml: parsed with gopkg.in/yaml.v3
//
// When no manifest file exists, Default() supplies a built-in manifest
// so `stagehand up` works with zero arguments in a project that follows
// the stock layout (a Streamlit entry point at front_end/main.py).
package manifest
