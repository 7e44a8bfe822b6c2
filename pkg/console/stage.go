package console

import "strings"

// stageAliases maps the console's short stage names and their common
// abbreviations to the on-wire stage identifier clients expect.
var stageAliases = map[string]string{
	"mushroom": "PeachWorldHomeStage",
	"mush":     "PeachWorldHomeStage",
	"cap":      "CapWorldHomeStage",
	"cascade":  "WaterfallWorldHomeStage",
	"sand":     "SandWorldHomeStage",
	"lake":     "LakeWorldHomeStage",
	"wooded":   "ForestWorldHomeStage",
	"cloud":    "CloudWorldHomeStage",
	"lost":     "ClashWorldHomeStage",
	"metro":    "CityWorldHomeStage",
	"seaside":  "SeaWorldHomeStage",
	"sea":      "SeaWorldHomeStage",
	"snow":     "SnowWorldHomeStage",
	"luncheon": "LavaWorldHomeStage",
	"lunch":    "LavaWorldHomeStage",
	"ruined":   "BossRaidWorldHomeStage",
	"ruin":     "BossRaidWorldHomeStage",
	"bowsers":  "SkyWorldHomeStage",
	"bowser":   "SkyWorldHomeStage",
	"moon":     "MoonWorldHomeStage",
	"darkside": "Special1WorldHomeStage",
	"dark":     "Special1WorldHomeStage",
	// Special2WorldHomeStag is not a typo: the client's own stage table
	// drops the trailing e, and the console must match it exactly.
	"darkerside": "Special2WorldHomeStag",
	"darker":     "Special2WorldHomeStag",
}

// ResolveStageAlias maps a console-typed stage name to the wire identifier,
// passing the input through unchanged if it does not match a known alias
// (allowing operators to type an exact stage name directly).
func ResolveStageAlias(s string) string {
	if full, ok := stageAliases[strings.ToLower(s)]; ok {
		return full
	}
	return s
}
