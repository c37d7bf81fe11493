package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/nmokit/nmokit/pkg/arena"
	"github.com/nmokit/nmokit/pkg/cherr"
	"github.com/nmokit/nmokit/pkg/chunk"
	"github.com/nmokit/nmokit/pkg/common/log"
)

// Command completer for readline
var completer = readline.NewPrefixCompleter(
	readline.PcItem(".help"),
	readline.PcItem(".open"),
	readline.PcItem(".exit"),
	readline.PcItem("INFO"),
	readline.PcItem("DUMP"),
	readline.PcItem("IDS"),
	readline.PcItem("MANAGERS"),
	readline.PcItem("CHUNKS"),
	readline.PcItem("SEEK"),
	readline.PcItem("CRC"),
	readline.PcItem("HASH"),
	readline.PcItem("PACK"),
	readline.PcItem("UNPACK"),
	readline.PcItem("SAVE"),
)

const helpText = `
nmokit - chunk container inspector for legacy .nmo/.cmo payloads

Usage:
  nmokit [options] [chunk_file]    - Start with an optional serialized chunk

Options:
  -debug                  - Verbose logging

Commands (interactive mode only):
  .help                   - Show this help message
  .open PATH              - Load a serialized chunk from PATH
  .exit                   - Exit the program

  INFO                    - Show chunk header, options and side-list sizes
  DUMP [START [COUNT]]    - Hex-dump payload words
  IDS                     - List tracked object-ID entries
  MANAGERS                - List tracked manager pair offsets
  CHUNKS                  - Print the embedded sub-chunk tree
  SEEK ID                 - Seek an identifier (hex or decimal)
  CRC [SEED]              - Adler-32 of the payload (default seed 1)
  HASH                    - xxhash64 payload fingerprint
  PACK                    - Compress the payload in place
  UNPACK                  - Restore a packed payload
  SAVE PATH               - Re-serialize the chunk to PATH
`

func main() {
	debugMode := flag.Bool("debug", false, "verbose logging")
	flag.Parse()

	logger := log.New()
	if *debugMode {
		logger.SetLevel(log.LevelDebug)
	}

	session := &session{
		arena:  arena.New(),
		logger: logger,
	}
	if path := flag.Arg(0); path != "" {
		if err := session.open(path); err != nil {
			logger.Error("open %s: %v", path, err)
			os.Exit(1)
		}
	}
	runInteractive(session)
}

type session struct {
	arena  *arena.Arena
	logger *log.Logger
	chunk  *chunk.Chunk
	path   string
}

func (s *session) open(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	c, err := chunk.Decode(s.arena, raw)
	if err != nil {
		return err
	}
	s.chunk = c
	s.path = path
	s.logger.Debug("loaded %s: %d payload words, %d ids, %d sub-chunks",
		path, c.Size(), c.IDCount(), c.SubChunkCount())
	return nil
}

// runInteractive starts the interactive inspector loop
func runInteractive(s *session) {
	fmt.Println("nmokit chunk inspector")
	fmt.Println("Enter .help for usage hints.")

	historyFile := filepath.Join(os.TempDir(), ".nmokit_history")
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "nmokit> ",
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    completer,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing readline: %s\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	for {
		if s.path != "" {
			rl.SetPrompt(fmt.Sprintf("nmokit:%s> ", filepath.Base(s.path)))
		}
		line, err := rl.Readline()
		if err != nil { // io.EOF or interrupt
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == ".exit" {
			break
		}
		if err := s.dispatch(line); err != nil {
			if cherr.SeverityOf(err) == cherr.SeverityInfo {
				fmt.Printf("(%v)\n", err)
			} else {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
		}
	}
}

var errNoChunk = errors.New("no chunk loaded; use .open PATH")

func (s *session) dispatch(line string) error {
	parts := strings.Fields(line)
	cmd := strings.ToUpper(parts[0])
	args := parts[1:]

	if cmd == ".HELP" {
		fmt.Print(helpText)
		return nil
	}
	if cmd == ".OPEN" {
		if len(args) != 1 {
			return errors.New("usage: .open PATH")
		}
		return s.open(args[0])
	}
	if s.chunk == nil {
		return errNoChunk
	}

	switch cmd {
	case "INFO":
		return s.info()
	case "DUMP":
		return s.dump(args)
	case "IDS":
		return s.listIDs()
	case "MANAGERS":
		return s.listManagers()
	case "CHUNKS":
		printTree(s.chunk, 0)
		return nil
	case "SEEK":
		return s.seek(args)
	case "CRC":
		return s.crc(args)
	case "HASH":
		fmt.Printf("%016x\n", s.chunk.Fingerprint())
		return nil
	case "PACK":
		before := s.chunk.Size()
		if err := s.chunk.Pack(); err != nil {
			return err
		}
		fmt.Printf("%d -> %d words\n", before, s.chunk.Size())
		return nil
	case "UNPACK":
		if err := s.chunk.Unpack(); err != nil {
			return err
		}
		fmt.Printf("%d words\n", s.chunk.Size())
		return nil
	case "SAVE":
		if len(args) != 1 {
			return errors.New("usage: SAVE PATH")
		}
		raw, err := s.chunk.Encode()
		if err != nil {
			return err
		}
		return os.WriteFile(args[0], raw, 0644)
	default:
		return fmt.Errorf("unknown command %q; try .help", parts[0])
	}
}

func (s *session) info() error {
	c := s.chunk
	fmt.Printf("class id:      %d (legacy %d)\n", c.ClassID(), c.LegacyClassID())
	fmt.Printf("data version:  %d\n", c.DataVersion())
	fmt.Printf("chunk version: %d\n", c.ChunkVersion())
	fmt.Printf("options:       %08b\n", uint8(c.Options()))
	fmt.Printf("payload:       %d words (%d bytes), capacity %d\n", c.Size(), c.ByteSize(), c.Capacity())
	fmt.Printf("side-lists:    %d ids, %d sub-chunks, %d manager pairs\n",
		c.IDCount(), c.SubChunkCount(), c.ManagerCount())
	if c.Packed() {
		fmt.Printf("packed:        yes, restores to %d words\n", c.UnpackSize())
	}
	return nil
}

func (s *session) dump(args []string) error {
	start, count := 0, s.chunk.Size()
	var err error
	if len(args) > 0 {
		if start, err = strconv.Atoi(args[0]); err != nil {
			return fmt.Errorf("bad start %q", args[0])
		}
	}
	if len(args) > 1 {
		if count, err = strconv.Atoi(args[1]); err != nil {
			return fmt.Errorf("bad count %q", args[1])
		}
	}
	for i := 0; i < count; i++ {
		w, err := s.chunk.Word(start + i)
		if err != nil {
			return err
		}
		fmt.Printf("%6d: %08x\n", start+i, w)
	}
	return nil
}

func (s *session) listIDs() error {
	c := s.chunk
	fmt.Printf("%d tracked entries\n", c.IDCount())
	return nil
}

func (s *session) listManagers() error {
	fmt.Printf("%d tracked manager pairs\n", s.chunk.ManagerCount())
	return nil
}

func (s *session) seek(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: SEEK ID")
	}
	id, err := strconv.ParseUint(strings.TrimPrefix(args[0], "0x"), 16, 32)
	if err != nil {
		if dec, derr := strconv.ParseUint(args[0], 10, 32); derr == nil {
			id, err = dec, nil
		} else {
			return fmt.Errorf("bad identifier %q", args[0])
		}
	}
	s.chunk.StartRead()
	if err := s.chunk.SeekIdentifier(uint32(id)); err != nil {
		return err
	}
	fmt.Printf("cursor at word %d\n", s.chunk.Position())
	return nil
}

func (s *session) crc(args []string) error {
	seed := uint32(1)
	if len(args) > 0 {
		v, err := strconv.ParseUint(args[0], 0, 32)
		if err != nil {
			return fmt.Errorf("bad seed %q", args[0])
		}
		seed = uint32(v)
	}
	fmt.Printf("%08x\n", s.chunk.ComputeCRC(seed))
	return nil
}

func printTree(c *chunk.Chunk, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Printf("%sclass %d: %d words, %d ids\n", indent, c.ClassID(), c.Size(), c.IDCount())
	for i := 0; i < c.SubChunkCount(); i++ {
		printTree(c.SubChunk(i), depth+1)
	}
}
