// Copyright 2025 The Rivaas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package osrv

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss"
	figure "github.com/common-nighthawk/go-figure"
	"golang.org/x/term"
)

// terminalWidth returns f's terminal width in character cells and whether f
// is actually attached to a terminal. Piped or redirected output (as in
// tests and production log collectors) reports false rather than querying
// an ioctl that would fail or return a stale size.
func terminalWidth(f *os.File) (int, bool) {
	if f == nil || !term.IsTerminal(int(f.Fd())) {
		return 0, false
	}
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return 0, false
	}
	return w, true
}

// printStartupBanner writes a colored ASCII-art banner for the service name
// plus a summary of the resolved address, protocol, and observability
// wiring. It is called once, from Serve, right before the serving log line.
func (s *Server) printStartupBanner() {
	w := colorprofile.NewWriter(os.Stdout, os.Environ())
	if s.cfg.isProduction {
		w.Profile = colorprofile.NoTTY
	}

	art := figure.NewFigure(s.cfg.serviceName, "", true)
	artLines := art.Slicify()

	artWidth := 0
	for _, line := range artLines {
		artWidth = max(artWidth, len(line))
	}

	gradient := []string{"10", "11"}
	if !s.cfg.isProduction {
		gradient = []string{"12", "14", "10", "11"}
	}

	var rendered strings.Builder
	if cols, isTTY := terminalWidth(os.Stdout); isTTY && cols < artWidth {
		// Figure art would wrap in the available columns; fall back to the
		// service name as plain bold text instead of garbling the ASCII art.
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(gradient[0])).Bold(true)
		rendered.WriteString(style.Render(s.cfg.serviceName))
		rendered.WriteString("\n")
	} else {
		for _, line := range artLines {
			if strings.TrimSpace(line) == "" {
				rendered.WriteString("\n")
				continue
			}
			for i, ch := range line {
				style := lipgloss.NewStyle().Foreground(lipgloss.Color(gradient[i%len(gradient)])).Bold(true)
				rendered.WriteString(style.Render(string(ch)))
			}
			rendered.WriteString("\n")
		}
	}

	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Width(14)
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Bold(true)
	disabledStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	scheme := "http://"
	if s.cfg.protocol == ProtocolHTTPS {
		scheme = "https://"
	}
	addr := fmt.Sprintf("%s%s:%d", scheme, s.cfg.hostname, s.cfg.port)

	metricsLine := disabledStyle.Render("disabled")
	if s.metrics != nil {
		metricsLine = valueStyle.Render("enabled")
	}
	tracingLine := disabledStyle.Render("disabled")
	if s.tracing != nil {
		tracingLine = valueStyle.Render("enabled")
	}

	fmt.Fprint(w, rendered.String())
	fmt.Fprintln(w, labelStyle.Render("version:"), valueStyle.Render(s.cfg.serviceVersion))
	fmt.Fprintln(w, labelStyle.Render("address:"), valueStyle.Render(addr))
	fmt.Fprintln(w, labelStyle.Render("protocol:"), valueStyle.Render(string(s.cfg.protocol)))
	fmt.Fprintln(w, labelStyle.Render("metrics:"), metricsLine)
	fmt.Fprintln(w, labelStyle.Render("tracing:"), tracingLine)
}
