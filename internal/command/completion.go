// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package command

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/staranto/geocache/internal/meta"
)

const bashCompletionScript = `# bash completion for geocache
# Fallback if bash-completion is not installed
if ! declare -F _get_comp_words_by_ref >/dev/null 2>&1; then
  _get_comp_words_by_ref() {
    cur=${COMP_WORDS[COMP_CWORD]}
    prev=${COMP_WORDS[COMP_CWORD-1]}
  }
fi

_geocache()
{
    local cur prev cmd
    COMPREPLY=()
    _get_comp_words_by_ref -n : cur prev

    if [[ ${COMP_CWORD} -eq 1 ]]; then
        COMPREPLY=( $(compgen -W "forward reverse batch completion --help --version" -- "$cur") )
        return 0
    fi

    cmd=${COMP_WORDS[1]}
    local common="--color -c --output -o --titles -t --max-entries --idle --flush-interval --singleflight --base-url --access-key --timeout"

    case "$cmd" in
        forward|reverse)
            local opts="$common"
            ;;
        batch)
            local opts="$common --stats -s --metrics -m --filter -f"
            ;;
        completion)
            COMPREPLY=( $(compgen -W "bash zsh" -- "$cur") )
            return 0
            ;;
        *)
            local opts="$common"
            ;;
    esac

    if [[ "$prev" == "--output" || "$prev" == "-o" ]]; then
        COMPREPLY=( $(compgen -W "text json yaml" -- "$cur") )
        return 0
    fi

    if [[ "$cur" == -* ]]; then
        COMPREPLY=( $(compgen -W "$opts" -- "$cur") )
    fi
    return 0
}

complete -F _geocache geocache
`

const zshCompletionScript = `#compdef geocache

_geocache() {
  local -a cmds
  cmds=(
    'forward:address to coordinates'
    'reverse:coordinates to address'
    'batch:run many lookups from stdin through one cache'
    'completion:generate shell completion script'
  )

  local -a common
  common=(
  '(-c --color)'{-c,--color}'[enable colored text]'
  '(-o --output)'{-o,--output}'[output format]:format:(text json yaml)'
  '(-t --titles)'{-t,--titles}'[show titles]'
  '--max-entries[maximum entries per region]:count'
  '--idle[idle expiration]:duration'
  '--flush-interval[full flush interval]:duration'
  '--singleflight[collapse concurrent identical misses]'
  '--base-url[provider base URL]:url'
  '--access-key[provider access key]:key'
  '--timeout[provider request timeout]:duration'
  )

  if (( CURRENT == 2 )); then
    _describe -t commands 'geocache commands' cmds
    return
  fi

  case $words[2] in
    forward)
      _arguments -C $common '*:address'
      ;;
    reverse)
      _arguments -C $common ':latitude' ':longitude'
      ;;
    batch)
      _arguments -C $common \
        '(-s --stats)'{-s,--stats}'[append statistics]' \
        '(-m --metrics)'{-m,--metrics}'[append Prometheus metrics]' \
        '(-f --filter)'{-f,--filter}'[only write matching rows]:expression'
      ;;
    completion)
      _arguments '1: :((bash zsh))'
      ;;
  esac
}

# If this file is sourced directly (not autoloaded via fpath), ensure compsys is initialized and register the completion
if ! typeset -f compdef >/dev/null 2>&1; then
  autoload -Uz compinit && compinit -i
fi
compdef _geocache geocache
`

func CompletionCommandAction(ctx context.Context, cmd *cli.Command) error {
	w := Writer(cmd)
	shell := ""
	if args := cmd.Args().Slice(); len(args) > 0 {
		shell = args[0]
	}
	switch shell {
	case "bash":
		fmt.Fprint(w, bashCompletionScript)
	case "zsh":
		fmt.Fprint(w, zshCompletionScript)
	default:
		// Try to detect from SHELL or print help
		sh := os.Getenv("SHELL")
		if strings.HasSuffix(sh, "zsh") {
			fmt.Fprint(w, zshCompletionScript)
		} else if strings.HasSuffix(sh, "bash") {
			fmt.Fprint(w, bashCompletionScript)
		} else {
			fmt.Fprintln(os.Stderr, "usage: geocache completion [bash|zsh]")
			return nil
		}
	}
	return nil
}

func CompletionCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	return &cli.Command{
		Name:      "completion",
		Usage:     "generate shell completion script",
		UsageText: "geocache completion [bash|zsh]",
		Metadata: map[string]any{
			"meta": meta,
		},
		Action: CompletionCommandAction,
	}
}
