package main

// First-party modules compiled into the binary.
import (
	_ "github.com/flemzord/majlis/internal/gateway"
	_ "github.com/flemzord/majlis/modules/channel/telegram"
	_ "github.com/flemzord/majlis/modules/memory/sqlite"
	_ "github.com/flemzord/majlis/modules/provider/anthropic"
	_ "github.com/flemzord/majlis/modules/provider/gemini"
	_ "github.com/flemzord/majlis/modules/provider/openai_compatible"
	_ "github.com/flemzord/majlis/modules/search/duckduckgo"
)
