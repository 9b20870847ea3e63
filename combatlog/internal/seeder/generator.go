// Package seeder produces synthetic combat logs for local testing and load
// generation.
package seeder

import (
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/parser"
)

// Generator writes plausible log lines for one match. The same seed always
// yields the same lines.
type Generator struct {
	faker   *gofakeit.Faker
	clock   time.Time
	players int
}

// NewGenerator returns a generator whose first line is stamped at start.
func NewGenerator(seed int64, start time.Time, players int) *Generator {
	return &Generator{
		faker:   gofakeit.New(seed),
		clock:   start.UTC(),
		players: max(players, 1),
	}
}

// Lines returns n event lines for game framed by the game's header and
// trailer lines.
func (g *Generator) Lines(game parser.Game, n int) ([]string, error) {
	switch game {
	case parser.GameWoW:
		return g.wow(n), nil
	case parser.GameFF14:
		return g.ff14(n), nil
	case parser.GameHearthstone:
		return g.hearthstone(n), nil
	}
	return nil, fmt.Errorf("%w: %q", parser.ErrUnsupportedPartition, game)
}

func (g *Generator) tick() time.Time {
	g.clock = g.clock.Add(time.Duration(g.faker.Number(50, 1500)) * time.Millisecond)
	return g.clock
}

// World of Warcraft

type wowUnit struct {
	guid  string
	name  string
	flags string
}

func (u wowUnit) String() string {
	return fmt.Sprintf(`%s,"%s",%s,0x0`, u.guid, u.name, u.flags)
}

const wowNone = `0000000000000000,nil,0x80000000,0x80000000`

type wowSpell struct {
	id     int
	name   string
	school int
}

func (s wowSpell) String() string {
	return fmt.Sprintf(`%d,"%s",0x%x`, s.id, s.name, s.school)
}

var (
	wowDamageSpells = []wowSpell{{133, "Fireball", 4}, {116, "Frostbolt", 16}, {585, "Smite", 2}, {172, "Corruption", 32}}
	wowHealSpells   = []wowSpell{{2061, "Flash Heal", 2}, {774, "Rejuvenation", 8}, {8004, "Healing Surge", 8}}
	wowAuras        = []wowSpell{{17, "Power Word: Shield", 2}, {1459, "Arcane Intellect", 64}, {21562, "Power Word: Fortitude", 2}}
)

func wowStamp(tm time.Time) string {
	return fmt.Sprintf("%d/%d %02d:%02d:%02d.%03d",
		tm.Month(), tm.Day(), tm.Hour(), tm.Minute(), tm.Second(), tm.Nanosecond()/int(time.Millisecond))
}

func (g *Generator) wowLine(body string) string {
	return wowStamp(g.tick()) + "  " + body
}

func (g *Generator) wowAdvanced(u wowUnit) string {
	maxHP := g.faker.Number(50_000, 120_000)
	return fmt.Sprintf("%s,0000000000000000,%d,%d,0,0,0,0,0,100,100,0,%.2f,%.2f,1234,%.2f,60",
		u.guid, g.faker.Number(1, maxHP), maxHP,
		g.faker.Float64Range(-500, 500), g.faker.Float64Range(-500, 500), g.faker.Float64Range(0, 6.28))
}

func (g *Generator) wow(n int) []string {
	players := make([]wowUnit, g.players)
	for i := range players {
		players[i] = wowUnit{
			guid:  fmt.Sprintf("Player-%d-%08X", g.faker.Number(1, 4000), g.faker.Number(1, 1<<30)),
			name:  g.faker.FirstName() + "-" + g.faker.LastName(),
			flags: "0x511",
		}
	}
	boss := wowUnit{guid: fmt.Sprintf("Creature-0-1-2-3-%d-5", g.faker.Number(1000, 9999)), name: "Shriekwing", flags: "0x10a48"}
	encounter := fmt.Sprintf(`%d,"%s",16,%d`, 2398, boss.name, len(players))

	lines := []string{
		g.wowLine("COMBAT_LOG_VERSION,20,ADVANCED_LOG_ENABLED,1,BUILD_VERSION,9.0.5,PROJECT_ID,1"),
		g.wowLine("ENCOUNTER_START," + encounter + ",2296"),
	}
	for range n {
		p := players[g.faker.Number(0, len(players)-1)]
		var body string
		switch g.faker.Number(0, 9) {
		case 0, 1, 2:
			s := wowDamageSpells[g.faker.Number(0, len(wowDamageSpells)-1)]
			amount := g.faker.Number(500, 5000)
			body = fmt.Sprintf("SPELL_DAMAGE,%s,%s,%s,%s,%d,%d,-1,%d,0,0,0,%s,nil,nil,nil",
				p, boss, s, g.wowAdvanced(boss), amount, amount, s.school, g.wowFlag())
		case 3:
			body = fmt.Sprintf("SWING_DAMAGE,%s,%s,%d,-1,1,0,0,0,nil,nil,nil,nil", boss, p, g.faker.Number(200, 3000))
		case 4, 5:
			s := wowHealSpells[g.faker.Number(0, len(wowHealSpells)-1)]
			target := players[g.faker.Number(0, len(players)-1)]
			amount := g.faker.Number(500, 4000)
			body = fmt.Sprintf("SPELL_HEAL,%s,%s,%s,%s,%d,%d,%d,0,%s",
				p, target, s, g.wowAdvanced(target), amount, amount, g.faker.Number(0, amount), g.wowFlag())
		case 6:
			s := wowDamageSpells[g.faker.Number(0, len(wowDamageSpells)-1)]
			lines = append(lines, g.wowLine(fmt.Sprintf("SPELL_CAST_START,%s,%s,%s", p, wowNone, s)))
			body = fmt.Sprintf("SPELL_CAST_SUCCESS,%s,%s,%s,%s", p, boss, s, g.wowAdvanced(p))
		case 7, 8:
			s := wowAuras[g.faker.Number(0, len(wowAuras)-1)]
			event := "SPELL_AURA_APPLIED"
			if g.faker.Bool() {
				event = "SPELL_AURA_REMOVED"
			}
			body = fmt.Sprintf("%s,%s,%s,%s,BUFF,%d", event, p, p, s, g.faker.Number(0, 10000))
		default:
			body = fmt.Sprintf("UNIT_DIED,%s,%s,0", wowNone, p)
		}
		lines = append(lines, g.wowLine(body))
	}
	return append(lines, g.wowLine(fmt.Sprintf("ENCOUNTER_END,%s,1,%d", encounter, g.faker.Number(60_000, 600_000))))
}

func (g *Generator) wowFlag() string {
	if g.faker.Number(0, 4) == 0 {
		return "1"
	}
	return "nil"
}

// Final Fantasy XIV

const ff14Stamp = "2006-01-02T15:04:05.0000000-07:00"

func (g *Generator) ff14Line(typ int, fields ...string) string {
	line := fmt.Sprintf("%02d|%s", typ, g.tick().Format(ff14Stamp))
	for _, f := range fields {
		line += "|" + f
	}
	return line + "|" + g.faker.LetterN(16)
}

type ff14Actor struct {
	id   string
	name string
}

func (g *Generator) ff14(n int) []string {
	players := make([]ff14Actor, g.players)
	lines := []string{g.ff14Line(1, "3D6", "The Tempest")}
	for i := range players {
		players[i] = ff14Actor{id: fmt.Sprintf("10FF%04X", i+1), name: g.faker.FirstName() + " " + g.faker.LastName()}
		lines = append(lines, g.ff14Line(3, players[i].id, players[i].name, "13", "50", "0", "49", "Gilgamesh", "", "",
			"100000", "100000", "10000", "10000"))
	}
	boss := ff14Actor{id: "40000001", name: "Ifrit"}

	for range n {
		p := players[g.faker.Number(0, len(players)-1)]
		switch g.faker.Number(0, 5) {
		case 0, 1, 2:
			fields := []string{p.id, p.name, "1F", "Heavy Swing", boss.id, boss.name, "710003", fmt.Sprintf("%X", g.faker.Number(1, 0xFFFF)<<16)}
			for range 7 {
				fields = append(fields, "0", "0")
			}
			fields = append(fields, "44000", "44000", "0", "10000", "", "", "0", "0", "0", "0")
			fields = append(fields, "90000", "100000", "10000", "10000", "", "", "0", "0", "0", "0", fmt.Sprintf("%08X", g.faker.Number(1, 1<<30)))
			lines = append(lines, g.ff14Line(21, fields...))
		case 3:
			lines = append(lines, g.ff14Line(26, "31", "Fight or Flight", "25.00", p.id, p.name, p.id, p.name, "00", "100000", "100000"))
		case 4:
			lines = append(lines, g.ff14Line(36, fmt.Sprintf("%X", g.faker.Number(0, 30000)), fmt.Sprintf("%d", g.faker.Number(0, 3))))
		default:
			lines = append(lines, g.ff14Line(25, p.id, p.name, boss.id, boss.name))
		}
	}
	return lines
}

// Hearthstone

func (g *Generator) hsLine(body string) string {
	tm := g.tick()
	return fmt.Sprintf("D %02d:%02d:%02d.%07d %s", tm.Hour(), tm.Minute(), tm.Second(), tm.Nanosecond()/100, body)
}

func (g *Generator) power(body string) string {
	return g.hsLine("GameState.DebugPrintPower() - " + body)
}

func (g *Generator) hearthstone(n int) []string {
	names := [2]string{
		fmt.Sprintf("%s#%d", g.faker.FirstName(), g.faker.Number(1000, 9999)),
		fmt.Sprintf("%s#%d", g.faker.FirstName(), g.faker.Number(1000, 9999)),
	}
	lines := []string{
		g.power("CREATE_GAME"),
		g.power("    GameEntity EntityID=1"),
		g.power("        tag=TURN value=1"),
		g.power("    Player EntityID=2 PlayerID=1 GameAccountId=[hi=1 lo=2]"),
		g.power("    Player EntityID=3 PlayerID=2 GameAccountId=[hi=3 lo=4]"),
		g.hsLine("GameState.DebugPrintGame() - PlayerID=1, PlayerName=" + names[0]),
		g.hsLine("GameState.DebugPrintGame() - PlayerID=2, PlayerName=" + names[1]),
	}
	for i := range n {
		turn := i + 2
		lines = append(lines,
			g.power(fmt.Sprintf("TAG_CHANGE Entity=GameEntity tag=TURN value=%d", turn)),
			g.power(fmt.Sprintf("TAG_CHANGE Entity=%s tag=RESOURCES value=%d", names[i%2], min(turn/2+1, 10))),
		)
	}
	return lines
}
