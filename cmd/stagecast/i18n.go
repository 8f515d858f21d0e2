// Package main provides localization for the stagecast CLI.
package main

import (
	"github.com/ideamans/go-l10n"
)

func init() {
	// Register Japanese translations for CLI messages.
	l10n.Register("ja", l10n.LexiconMap{
		// Flag categories
		"Configuration": "設定",
		"Logging":       "ログ",
		"Debug":         "デバッグ",

		// Root command
		"Play videos and still images on preview and output screens": "プレビュー画面と出力画面で動画と静止画を再生",

		// Global flags
		"Path to a YAML configuration file":       "YAML設定ファイルのパス",
		"Decoder backend (auto, openh264, ffmpeg)": "デコーダーのバックエンド（auto, openh264, ffmpeg）",
		"Path to the ffmpeg executable":            "ffmpeg実行ファイルのパス",
		"Log level (debug, info, warn, error)":     "ログレベル（debug, info, warn, error）",
		"Suppress all log output":                  "全てのログ出力を抑制",

		// Play command
		"Play a video or show an image on one or both targets":  "動画を再生、または静止画を表示（片方または両方の画面）",
		"Target screen (preview, output, both)":                 "表示先の画面（preview, output, both）",
		"Stop after this duration (0 plays until interrupted)":  "指定時間後に停止（0 は中断されるまで再生）",
		"Number of passes over the video (0 loops forever)":     "動画の再生回数（0 は無限ループ）",
		"Directory to save delivered frames as PNG":             "表示したフレームをPNGとして保存するディレクトリ",
		"Save every Nth delivered frame":                        "N フレームごとに保存",

		// Thumbnail command
		"Extract a representative frame as an image":                  "代表フレームを画像として抽出",
		"Output image path (.png or .jpg)":                            "出力画像のパス（.png または .jpg）",
		"Scale the thumbnail to this width, keeping the aspect ratio": "縦横比を保ったままサムネイルをこの幅に縮小",

		// Probe command
		"Show the codec and track of a media file": "メディアファイルのコーデックとトラックを表示",
		"File: %s":                        "ファイル: %s",
		"Kind: %s":                        "種類: %s",
		"Codec: %s":                       "コーデック: %s",
		"Size: %dx%d":                     "サイズ: %dx%d",
		"No playable H.264 track":         "再生可能なH.264トラックがありません",
		"Track ID: %d":                    "トラックID: %d",
		"Samples: %d":                     "サンプル数: %d",
		"Frame rate: %.3f fps":            "フレームレート: %.3f fps",
		"Duration: %s":                    "再生時間: %s",
		"Parameter sets: %d SPS, %d PPS": "パラメータセット: SPS %d 個, PPS %d 個",

		// Error messages
		"A media file argument is required": "メディアファイルの引数が必要です",
	})
}
