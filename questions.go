/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"

	"github.com/Seednode/feudbox/games/feud"
	"github.com/spf13/viper"
)

//go:embed questions.json
var defaultQuestions []byte

// loadRounds reads the rounds to play from path, or the built-in set when
// path is empty. The file format follows the extension (json, yaml, toml).
func loadRounds(path string) ([]feud.Round, error) {
	v := viper.New()

	if path == "" {
		v.SetConfigType("json")
		if err := v.ReadConfig(bytes.NewReader(defaultQuestions)); err != nil {
			return nil, fmt.Errorf("built-in questions: %w", err)
		}
	} else {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading questions from %s: %w", path, err)
		}
	}

	var rounds []feud.Round
	if err := v.UnmarshalKey("rounds", &rounds); err != nil {
		return nil, fmt.Errorf("decoding questions: %w", err)
	}

	if len(rounds) == 0 {
		return nil, errors.New("questions file contains no rounds")
	}

	// New runs the same checks every game does; fail at startup instead.
	if _, err := feud.New(rounds); err != nil {
		return nil, fmt.Errorf("invalid questions: %w", err)
	}

	return rounds, nil
}
