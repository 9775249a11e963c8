// Package main provides localization for the vidplay CLI.
package main

import (
	"github.com/ideamans/go-l10n"
)

func init() {
	// Register Japanese translations for CLI messages.
	l10n.Register("ja", l10n.LexiconMap{
		// Flag categories
		"Configuration": "設定",
		"Decoding":      "デコード",
		"Playback":      "再生",
		"Audio":         "音声",
		"Debug":         "デバッグ",
		"Output":        "出力先",
		"Logging":       "ログ",

		// Commands
		"Play local video files through a pollable playback engine": "ポーリング型再生エンジンでローカル動画を再生",
		"Play a video file in a headless render loop":               "ヘッドレスな描画ループで動画ファイルを再生",
		"Print container and track metadata as YAML":                "コンテナとトラックのメタデータをYAMLで表示",
		"Generate a test pattern MP4 clip":                          "テストパターンのMP4クリップを生成",
		"Show version information":                                  "バージョン情報を表示",
		"vidplay version %s":                                        "vidplay バージョン %s",

		// Play flags
		"YAML configuration file":                          "YAML設定ファイル",
		"Decoder backend (auto, software, ffmpeg)":         "デコーダーバックエンド（auto, software, ffmpeg）",
		"Path to the ffmpeg executable":                    "ffmpeg実行ファイルのパス",
		"Maximum decoded width (0 = source width)":         "デコード後の最大幅（0 = 元の幅）",
		"Maximum decoded height (0 = source height)":       "デコード後の最大高さ（0 = 元の高さ）",
		"Consecutive undecodable packets tolerated":        "許容する連続デコード不能パケット数",
		"Decoded frame queue size (0 = sized from free memory)": "デコード済みフレームキューのサイズ（0 = 空きメモリから決定）",
		"Host render loop rate":                            "ホスト描画ループのレート",
		"Initial volume (0-1)":                             "初期音量（0-1）",
		"Start muted":                                      "ミュートで開始",
		"Ignore the audio track":                           "音声トラックを無視",
		"Directory to save presented frames":               "表示フレームの保存先ディレクトリ",
		"Save one frame out of N":                          "Nフレームごとに1枚保存",
		"Output playback summary to file (Markdown, or YAML for .yaml)": "再生サマリーをファイルに出力（Markdown形式、.yamlならYAML形式）",
		"Log level (debug, info, warn, error, quiet)":      "ログレベル（debug, info, warn, error, quiet）",
		"Suppress all log output":                          "すべてのログ出力を抑制",

		// Gen flags
		"Clip duration":        "クリップの長さ",
		"Frame rate":           "フレームレート",
		"Frame width":          "フレームの幅",
		"Frame height":         "フレームの高さ",
		"JPEG quality (0-100)": "JPEG品質（0-100）",
		"Add a sine tone audio track": "サイン波の音声トラックを追加",
		"Tone frequency in Hz":        "トーンの周波数（Hz）",
		"Zero-based frame index to write as an undecodable sample (repeatable)": "デコード不能サンプルとして書き込むフレーム番号（0始まり、複数指定可）",
		"Write a single moov instead of fragments":       "フラグメントではなく単一のmoovで書き込む",
		"Place moov after mdat (implies --progressive)": "moovをmdatの後に配置（--progressiveを含む）",
		"Fragment duration":                             "フラグメントの長さ",

		// Messages
		"Error: %v":                          "エラー: %v",
		"A video file argument is required":  "動画ファイルの指定が必要です",
		"An output file argument is required": "出力ファイルの指定が必要です",
		"Invalid clip geometry":              "クリップのサイズまたはレートが不正です",
		"Wrote %d frames to %s":              "%d フレームを %s に書き込みました",
		"Video size %dx%d":                   "動画サイズ %dx%d",
		"Interrupted, stopping playback":     "中断されたため再生を停止します",
		"Failed to save stream info: %v":     "ストリーム情報の保存に失敗しました: %v",
		"Failed to save frames: %v":          "フレームの保存に失敗しました: %v",
		"Failed to write summary: %v":        "サマリーの書き込みに失敗しました: %v",
		"Summary saved to %s":                "サマリーを %s に保存しました",
		"Skipped %d frames while saving":     "保存中に %d フレームをスキップしました",
		"Saved %d frames":                    "%d フレームを保存しました",

		// Summary
		"Playback Summary":      "再生サマリー",
		"Source":                "入力",
		"Stream":                "ストリーム",
		"Settings":              "設定",
		"Item":                  "項目",
		"Value":                 "値",
		"File":                  "ファイル",
		"Size":                  "サイズ",
		"Container":             "コンテナ",
		"Duration":              "長さ",
		"Video":                 "映像",
		"None":                  "なし",
		"fragmented":            "フラグメント",
		"Result":                "結果",
		"Decoder Backend":       "デコーダーバックエンド",
		"Frames Presented":      "表示フレーム数",
		"Frames Dropped (late)": "遅延による破棄フレーム数",
		"Frames Undecodable":    "デコード不能フレーム数",
		"Decode Gaps":           "デコード欠落",
		"Rebuffers":             "再バッファリング回数",
		"Packets":               "パケット数",
		"Final Position":        "最終位置",
		"Wall Time":             "実時間",
		"Backend":               "バックエンド",
		"Corrupt Threshold":     "破損しきい値",
		"Lookahead Frames":      "先読みフレーム数",
		"Frame Queue":           "フレームキュー",
		"Max Size":              "最大サイズ",
		"Volume":                "音量",
		"Host Tick Rate":        "ホストのティックレート",
		"auto":                  "自動",
		"Stopped":               "停止",
		"Failed":                "失敗",
		"Completed":             "完了",
		"N/A":                   "なし",
		"Generated at":          "生成日時",
	})
}
