package logger

import "github.com/ideamans/go-l10n"

func init() {
	l10n.Register("ja", l10n.LexiconMap{
		// Player (info)
		"Playing %s: %s %dx%d at %.3f fps, %s backend": "%s を再生中: %s %dx%d %.3f fps, %s バックエンド",
		"Playback of %s finished":                      "%s の再生が完了しました",
		"State %s -> %s":                               "状態 %s -> %s",
		"Buffering at %v":                              "%v でバッファリング中",
		"No audio output, ignoring audio track":        "音声出力がないため音声トラックを無視します",

		// Demux
		"End of stream after %d packets": "%d パケットでストリームが終了しました",

		// Warnings
		"Audio track skipped: %v": "音声トラックをスキップしました: %v",
		"Input ended early: %v":   "入力が途中で終了しました: %v",
		"Decode gap at %v: %v":    "%v でデコードできないパケットをスキップしました: %v",

		// Errors
		"Failed to play %s: %v":     "%s の再生に失敗しました: %v",
		"Playback of %s failed: %v": "%s の再生に失敗しました: %v",
		"Stream corrupt: %v":        "ストリームが破損しています: %v",
	})
}
