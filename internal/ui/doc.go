// Package ui holds the color palette, status symbols and terminal
// detection shared by the dashboard and the plain CLI output.
//
// Colors are ANSI codes so they follow the user's terminal theme:
//
//	ColorSuccess   (green)  - healthy hosts, completed checks
//	ColorError     (red)    - failures and critical GPUs
//	ColorWarning   (yellow) - GPUs over a warning threshold
//	ColorInfo      (cyan)   - GPU model names
//	ColorMuted     (gray)   - secondary text and absent readings
//
// ConfigureColor switches lipgloss to plain ASCII when --no-color is passed
// or NO_COLOR is set.
package ui
