/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package dircd

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/coreircd/dircd/casemap"
)

// The channel database is a flat text file: a VERSION header, one CHAN
// line per channel carrying its name, creation timestamp, active
// simple/param modes, and (when set) the topic with its provenance,
// closed by a literal "end" line so a truncated file is detectable.
//
//	VERSION 1
//	CHAN #name <created> <modes> [<topictime> <setter> :<topic>]
//	end
const chanDBVersion = "VERSION 1"

// SaveChannelDB writes every current channel to path atomically: the
// snapshot lands in a temp file first and is renamed into place, so a
// crash mid-write never clobbers the previous good database.
func (server *Server) SaveChannelDB(path string) error {
	tmp := path + ".tmp"

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(f)
	fmt.Fprintln(w, chanDBVersion)

	var writeErr error
	server.Channels.ForEach(func(_ string, channel *Channel) error {
		flags, args := RenderChannelModes(channel)
		modes := flags
		if len(args) > 0 {
			modes += " " + strings.Join(args, " ")
		}

		line := fmt.Sprintf("CHAN %s %d %s", channel.Name(), channel.CreatedAt(), modes)
		if topic, setter, when := channel.Topic(); topic != EMPTY {
			line += fmt.Sprintf(" %d %s :%s", when, setter, topic)
		}

		if _, err := fmt.Fprintln(w, line); err != nil {
			writeErr = err
		}
		return nil
	})

	fmt.Fprintln(w, "end")

	if writeErr == nil {
		writeErr = w.Flush()
	}
	if err := f.Close(); writeErr == nil {
		writeErr = err
	}
	if writeErr != nil {
		os.Remove(tmp)
		return writeErr
	}

	return os.Rename(tmp, path)
}

// LoadChannelDB replays a channel database written by SaveChannelDB,
// recreating each channel with its persisted creation timestamp,
// modes, and topic. A missing file is not an error; a file without its
// terminating "end" line is rejected as truncated.
func (server *Server) LoadChannelDB(path string) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() || scanner.Text() != chanDBVersion {
		return fmt.Errorf("channel database %s: missing %q header", path, chanDBVersion)
	}

	table := casemap.ForMapping(server.Casemap())
	terminated := false

	for scanner.Scan() {
		line := scanner.Text()
		if line == "end" {
			terminated = true
			break
		}

		channel, err := parseChanDBLine(line)
		if err != nil {
			log.WithError(err).Warnf("irc: skipping bad channel database line: %q", line)
			continue
		}

		server.Channels.Set(casemap.Key(channel.Name(), table), channel)
	}

	if err := scanner.Err(); err != nil {
		return err
	}
	if !terminated {
		return fmt.Errorf("channel database %s: truncated (no end line)", path)
	}
	return nil
}

func parseChanDBLine(line string) (*Channel, error) {
	var topic string
	if idx := strings.Index(line, " :"); idx >= 0 {
		topic = line[idx+2:]
		line = line[:idx]
	}

	fields := strings.Fields(line)
	if len(fields) < 4 || fields[0] != "CHAN" {
		return nil, fmt.Errorf("malformed channel entry")
	}

	created, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad creation timestamp %q", fields[2])
	}

	channel := NewChannel(fields[1], created)

	flags := fields[3]
	args := fields[4:]
	if topic != EMPTY {
		// The trailing topic is preceded by "<topictime> <setter>",
		// which sit after the mode arguments.
		if len(args) < 2 {
			return nil, fmt.Errorf("topic present without provenance")
		}
		when, err := strconv.ParseInt(args[len(args)-2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad topic timestamp %q", args[len(args)-2])
		}
		channel.SetTopic(topic, args[len(args)-1], when)
		args = args[:len(args)-2]
	}

	applyPersistedModes(channel, flags, args)
	return channel, nil
}

// applyPersistedModes re-applies a RenderChannelModes string to a
// freshly-loaded channel.
func applyPersistedModes(channel *Channel, flags string, args []string) {
	argi := 0
	for i := 0; i < len(flags); i++ {
		letter := flags[i]
		if letter == '+' {
			continue
		}

		switch letter {
		case 'k':
			if argi < len(args) {
				channel.SetKey(args[argi])
				argi++
			}
			channel.AddMode(CModeKey)
		case 'l':
			if argi < len(args) {
				if limit, err := strconv.Atoi(args[argi]); err == nil {
					channel.SetLimit(limit)
					argi++
				}
			}
			channel.AddMode(CModeLimit)
		default:
			if bit, ok := ChanModeLetters[letter]; ok {
				channel.AddMode(bit)
			}
		}
	}
}
