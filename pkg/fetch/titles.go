package fetch

import (
	"bufio"
	"errors"
	"os"
	"strings"
)

var ErrNoTitles = errors.New("no titles given")

// ParseTitles expands a --titles argument: either a "|"-separated list or
// "@path" naming a file with one title per line.
func ParseTitles(arg string) ([]string, error) {
	if arg == "" {
		return nil, ErrNoTitles
	}

	if !strings.HasPrefix(arg, "@") {
		return strings.Split(arg, "|"), nil
	}

	file, err := os.Open(arg[1:])
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var titles []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		title := strings.TrimSpace(scanner.Text())
		if title == "" {
			continue
		}
		titles = append(titles, title)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(titles) == 0 {
		return nil, ErrNoTitles
	}
	return titles, nil
}
