package hearthstone

import (
	"regexp"
	"strings"
)

// ActionKind is the leading keyword of a power line.
type ActionKind int

const (
	ActionUnknown ActionKind = iota
	ActionCreateGame
	ActionCreateGameEntity
	ActionCreatePlayerEntity
	ActionFullEntity
	ActionTagChange
	ActionBlockStart
	ActionBlockEnd
	ActionShowEntity
	ActionHideEntity
	ActionShuffleDeck
	ActionMetadata
	ActionSubSpellStart
	ActionSubSpellEnd
	ActionCachedTagForDormantChange
)

var actionKeywords = map[string]ActionKind{
	"CREATE_GAME":                   ActionCreateGame,
	"FULL_ENTITY":                   ActionFullEntity,
	"TAG_CHANGE":                    ActionTagChange,
	"BLOCK_START":                   ActionBlockStart,
	"BLOCK_END":                     ActionBlockEnd,
	"SHOW_ENTITY":                   ActionShowEntity,
	"HIDE_ENTITY":                   ActionHideEntity,
	"SHUFFLE_DECK":                  ActionShuffleDeck,
	"META_DATA":                     ActionMetadata,
	"SUB_SPELL_START":               ActionSubSpellStart,
	"SUB_SPELL_END":                 ActionSubSpellEnd,
	"CACHED_TAG_FOR_DORMANT_CHANGE": ActionCachedTagForDormantChange,
}

var actionNames = map[ActionKind]string{
	ActionUnknown:            "UNKNOWN",
	ActionCreateGameEntity:   "GameEntity",
	ActionCreatePlayerEntity: "Player",
}

func init() {
	for k, v := range actionKeywords {
		actionNames[v] = k
	}
}

func (k ActionKind) String() string {
	if s, ok := actionNames[k]; ok {
		return s
	}
	return actionNames[ActionUnknown]
}

// MarshalText encodes the kind as its log keyword.
func (k ActionKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a log keyword.
func (k *ActionKind) UnmarshalText(b []byte) error {
	switch s := string(b); s {
	case "GameEntity":
		*k = ActionCreateGameEntity
	case "Player":
		*k = ActionCreatePlayerEntity
	default:
		*k = actionKeywords[s]
	}
	return nil
}

type powerAction struct {
	kind  ActionKind
	attrs map[string]string
}

// parseAction recognizes an action line. GameEntity and Player lines of a
// CREATE_GAME section are the only actions not keyed by an upper-case keyword.
func parseAction(body string) (powerAction, bool) {
	if rest, ok := strings.CutPrefix(body, "GameEntity"); ok {
		return powerAction{kind: ActionCreateGameEntity, attrs: ParseAttributes(rest)}, true
	}
	if rest, ok := strings.CutPrefix(body, "Player"); ok {
		return powerAction{kind: ActionCreatePlayerEntity, attrs: ParseAttributes(rest)}, true
	}

	fields := strings.Fields(body)
	if len(fields) == 0 {
		return powerAction{}, false
	}
	kind, ok := actionKeywords[fields[0]]
	if !ok {
		return powerAction{}, false
	}
	return powerAction{kind: kind, attrs: ParseAttributes(strings.Join(fields[1:], " "))}, true
}

var tagAttributeRE = regexp.MustCompile(`tag=(.*) value=(.*)`)

func parseTagAttribute(body string) (tag, value string, ok bool) {
	m := tagAttributeRE.FindStringSubmatch(body)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// ParseAttributes splits "KEY1=VALUE1 KEY2=VALUE2 ..." where values may
// contain spaces. The line is scanned right to left: each '=' marks a key
// that starts after the preceding space, and its value runs to the start of
// the next key. An '=' enclosed in [] belongs to a value.
func ParseAttributes(s string) map[string]string {
	out := make(map[string]string)
	end := len(s)
	for end > 0 {
		rest := s[:end]
		eq := strings.LastIndexByte(rest, '=')
		if eq < 0 {
			break
		}

		lb := strings.LastIndexByte(rest, '[')
		rb := strings.LastIndexByte(rest, ']')
		if lb >= 0 && rb >= 0 && eq > lb && eq < rb {
			eq = strings.LastIndexByte(s[:lb], '=')
			if eq < 0 {
				break
			}
		}

		ws := strings.LastIndexByte(s[:eq], ' ')
		key, value, _ := strings.Cut(s[ws+1:end], "=")
		out[strings.TrimSpace(key)] = strings.TrimSpace(value)
		if ws < 0 {
			break
		}
		end = ws
	}
	return out
}
