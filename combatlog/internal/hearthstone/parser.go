package hearthstone

import (
	"log/slog"
	"strconv"
	"strings"
)

const (
	funcPrintGame  = "GameState.DebugPrintGame()"
	funcPrintPower = "GameState.DebugPrintPower()"
)

// GameType is the match mode reported by DebugPrintGame.
type GameType int

const (
	GameTypeUnknown               GameType = 0
	GameTypeVsAI                  GameType = 1
	GameTypeVsFriend              GameType = 2
	GameTypeTutorial              GameType = 4
	GameTypeArena                 GameType = 5
	GameTypeTestAIVsAI            GameType = 6
	GameTypeRanked                GameType = 7
	GameTypeCasual                GameType = 8
	GameTypeTavernBrawl           GameType = 16
	GameTypeTB1PVsAI              GameType = 17
	GameTypeTB2PCoop              GameType = 18
	GameTypeFSGBrawlVsFriend      GameType = 19
	GameTypeFSGBrawl              GameType = 20
	GameTypeFSGBrawl1PVsAI        GameType = 21
	GameTypeFSGBrawl2PCoop        GameType = 22
	GameTypeBattlegrounds         GameType = 23
	GameTypeBattlegroundsFriendly GameType = 24
	GameTypePvPDRPaid             GameType = 28
	GameTypePvPDR                 GameType = 29
)

var gameTypes = map[string]GameType{
	"GT_UNKNOWN":                GameTypeUnknown,
	"GT_VS_AI":                  GameTypeVsAI,
	"GT_VS_FRIEND":              GameTypeVsFriend,
	"GT_TUTORIAL":               GameTypeTutorial,
	"GT_ARENA":                  GameTypeArena,
	"GT_TEST_AI_VS_AI":          GameTypeTestAIVsAI,
	"GT_RANKED":                 GameTypeRanked,
	"GT_CASUAL":                 GameTypeCasual,
	"GT_TAVERNBRAWL":            GameTypeTavernBrawl,
	"GT_TB_1P_VS_AI":            GameTypeTB1PVsAI,
	"GT_TB_2P_COOP":             GameTypeTB2PCoop,
	"GT_FSG_BRAWL_VS_FRIEND":    GameTypeFSGBrawlVsFriend,
	"GT_FSG_BRAWL":              GameTypeFSGBrawl,
	"GT_FSG_BRAWL_1P_VS_AI":     GameTypeFSGBrawl1PVsAI,
	"GT_FSG_BRAWL_2P_COOP":      GameTypeFSGBrawl2PCoop,
	"GT_BATTLEGROUNDS":          GameTypeBattlegrounds,
	"GT_BATTLEGROUNDS_FRIENDLY": GameTypeBattlegroundsFriendly,
	"GT_PVPDR_PAID":             GameTypePvPDRPaid,
	"GT_PVPDR":                  GameTypePvPDR,
}

// ParseGameType maps a GT_* name to its value. Unrecognized names are unknown.
func ParseGameType(s string) GameType {
	return gameTypes[strings.TrimSpace(s)]
}

// FormatType is the card pool format.
type FormatType int

const (
	FormatUnknown FormatType = iota
	FormatWild
	FormatStandard
	FormatClassic
)

// ParseFormatType maps an FT_* name to its value.
func ParseFormatType(s string) FormatType {
	switch strings.TrimSpace(s) {
	case "FT_WILD":
		return FormatWild
	case "FT_STANDARD":
		return FormatStandard
	case "FT_CLASSIC":
		return FormatClassic
	}
	return FormatUnknown
}

// GameState is the match metadata that does not change once printed.
type GameState struct {
	GameType   GameType       `json:"game_type"`
	FormatType FormatType     `json:"format_type"`
	ScenarioID int            `json:"scenario_id"`
	Players    map[int]string `json:"players"`
}

// Parser routes Power.log lines: DebugPrintGame lines update GameState and
// DebugPrintPower lines drive the FSM. Anything else is ignored.
type Parser struct {
	State GameState
	Game  *GameLog

	fsm     *FSM
	skipped int
}

// Option configures a Parser.
type Option func(*Parser)

// WithRawCapture records every power line with the FSM state it landed in.
func WithRawCapture() Option {
	return func(p *Parser) {
		p.fsm.captureRaw = true
	}
}

// NewParser returns a parser with an empty game log.
func NewParser(opts ...Option) *Parser {
	game := NewGameLog()
	p := &Parser{
		State: GameState{Players: make(map[int]string)},
		Game:  game,
		fsm:   NewFSM(game, false),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FSM exposes the underlying state machine.
func (p *Parser) FSM() *FSM {
	return p.fsm
}

// Skipped counts lines that failed to tokenize.
func (p *Parser) Skipped() int {
	return p.skipped
}

// Feed processes a single line. Lines without a delimiter are skipped.
func (p *Parser) Feed(line RawLogLine) {
	pl, err := Tokenize(line.Text)
	if err != nil {
		p.skipped++
		return
	}

	switch pl.Func {
	case funcPrintGame:
		p.printGame(pl)
	case funcPrintPower:
		p.fsm.Feed(line.Time, pl)
	}
}

// Parse feeds every line then finalizes the FSM.
func (p *Parser) Parse(lines []RawLogLine) *GameLog {
	for _, l := range lines {
		p.Feed(l)
	}
	p.Finalize()
	return p.Game
}

// Finalize drains any open FSM states into the game log.
func (p *Parser) Finalize() {
	p.fsm.Finalize()
}

func (p *Parser) printGame(pl PowerLog) {
	key, value, ok := strings.Cut(pl.Body, "=")
	if !ok {
		return
	}

	switch key {
	case "GameType":
		p.State.GameType = ParseGameType(value)
	case "FormatType":
		p.State.FormatType = ParseFormatType(value)
	case "ScenarioID":
		id, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			slog.Warn("invalid hearthstone scenario id", slog.String("value", value))
			return
		}
		p.State.ScenarioID = id
	case "PlayerID":
		// PlayerID=ID, PlayerName=NAME
		idPart, namePart, ok := strings.Cut(pl.Body, ", ")
		if !ok {
			return
		}
		_, idStr, _ := strings.Cut(idPart, "=")
		_, name, _ := strings.Cut(namePart, "=")
		id, err := strconv.Atoi(strings.TrimSpace(idStr))
		if err != nil {
			slog.Warn("invalid hearthstone player id", slog.String("value", idStr))
			return
		}
		p.State.Players[id] = name
		// Some entities are named by player, so the game log needs the mapping too.
		p.Game.SetPlayers(p.State.Players)
	}
}
