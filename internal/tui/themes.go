package tui

import "github.com/charmbracelet/lipgloss"

// Theme is a dashboard colour scheme. Colours are hex strings.
type Theme struct {
	Name            string
	PrimaryAccent   string
	SecondaryAccent string
	OKText          string
	AlertText       string
	LabelText       string
	MutedText       string
	Border          string
	SelectedBg      string
}

var Themes = map[string]Theme{
	"default": {
		Name:            "Default",
		PrimaryAccent:   "#7D56F4",
		SecondaryAccent: "#04B575",
		OKText:          "#04B575",
		AlertText:       "#FF5F87",
		LabelText:       "#AAAAAA",
		MutedText:       "#626262",
		Border:          "#444444",
		SelectedBg:      "#3C3C3C",
	},
	"gruvbox": {
		Name:            "Gruvbox",
		PrimaryAccent:   "#FE8019",
		SecondaryAccent: "#B8BB26",
		OKText:          "#B8BB26",
		AlertText:       "#FB4934",
		LabelText:       "#D5C4A1",
		MutedText:       "#928374",
		Border:          "#504945",
		SelectedBg:      "#3C3836",
	},
	"tokyonight": {
		Name:            "Tokyo Night",
		PrimaryAccent:   "#7AA2F7",
		SecondaryAccent: "#9ECE6A",
		OKText:          "#9ECE6A",
		AlertText:       "#F7768E",
		LabelText:       "#A9B1D6",
		MutedText:       "#565F89",
		Border:          "#3B4261",
		SelectedBg:      "#292E42",
	},
	"catppuccin": {
		Name:            "Catppuccin",
		PrimaryAccent:   "#CBA6F7",
		SecondaryAccent: "#A6E3A1",
		OKText:          "#A6E3A1",
		AlertText:       "#F38BA8",
		LabelText:       "#BAC2DE",
		MutedText:       "#6C7086",
		Border:          "#45475A",
		SelectedBg:      "#313244",
	},
}

// ThemeNames lists Themes in cycling order.
var ThemeNames = []string{"default", "gruvbox", "tokyonight", "catppuccin"}

var CurrentTheme = Themes["default"]

var (
	titleStyle    lipgloss.Style
	sectionStyle  lipgloss.Style
	labelStyle    lipgloss.Style
	valueStyle    lipgloss.Style
	mutedStyle    lipgloss.Style
	okStyle       lipgloss.Style
	alertStyle    lipgloss.Style
	boxStyle      lipgloss.Style
	selectedStyle lipgloss.Style
	barStyle      lipgloss.Style
)

func init() {
	regenerateStyles()
}

// SetTheme switches to the named theme. Unknown names are ignored.
func SetTheme(name string) {
	theme, ok := Themes[name]
	if !ok {
		return
	}
	CurrentTheme = theme
	regenerateStyles()
}

func nextTheme() string {
	for i, name := range ThemeNames {
		if Themes[name].Name == CurrentTheme.Name {
			return ThemeNames[(i+1)%len(ThemeNames)]
		}
	}
	return ThemeNames[0]
}

func regenerateStyles() {
	t := CurrentTheme
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(t.PrimaryAccent)).MarginBottom(1)
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(t.SecondaryAccent))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(t.LabelText))
	valueStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(t.MutedText))
	okStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(t.OKText))
	alertStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(t.AlertText))
	boxStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(t.Border)).
		Padding(0, 1)
	selectedStyle = lipgloss.NewStyle().Background(lipgloss.Color(t.SelectedBg)).Bold(true)
	barStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(t.PrimaryAccent))
}
