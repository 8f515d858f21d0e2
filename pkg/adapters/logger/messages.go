package logger

import "github.com/ideamans/go-l10n"

func init() {
	l10n.Register("ja", l10n.LexiconMap{
		// Engine (info)
		"Playing %s on %s":       "%s を %s で再生中",
		"Showing image %s on %s": "画像 %s を %s に表示中",
		"All targets stopped":    "全ての画面の再生を停止しました",

		// Session
		"Started %s (run %s)": "%s の再生を開始しました (run %s)",
		"Stopped run %s":      "run %s を停止しました",
		"Open failed for %s: %v": "%s を開けませんでした: %v",

		// Playback loop
		"Run %s: %dx%d, %d samples, frame interval %s": "run %s: %dx%d, %d サンプル, フレーム間隔 %s",
		"Run %s: cancelled during pass %d":            "run %s: %d 周目でキャンセルされました",
		"Run %s: skipping sample: %v":                 "run %s: サンプルをスキップします: %v",
		"Run %s: frame from sample %d dropped: %v":    "run %s: サンプル %d のフレームを破棄しました: %v",
		"Run %s: %v":                                  "run %s: %v",

		// Decoder
		"Decoder backend: %s (%dx%d)": "デコーダー: %s (%dx%d)",

		// Thumbnail
		"No thumbnail for %s: %v":                "%s のサムネイルを作成できません: %v",
		"No thumbnail for %s: no frame decoded": "%s のサムネイルを作成できません: デコードできたフレームがありません",
		"Thumbnail saved to %s":                  "サムネイルを %s に保存しました",

		// Sinks
		"Failed to save frame %d: %v": "フレーム %d の保存に失敗しました: %v",

		// CLI
		"Interrupted, shutting down...":                          "中断されました。シャットダウン中...",
		"%s: %d passes, %d frames decoded, %d skipped, %d dropped": "%s: %d 周, %d フレームをデコード, %d スキップ, %d 破棄",
		"%s: %d frames shown in %s":                              "%s: %d フレームを %s で表示しました",

		// Errors
		"Failed to play %s: %v":       "%s の再生に失敗しました: %v",
		"Failed to show image %s: %v": "画像 %s の表示に失敗しました: %v",
		"No logo configured":          "ロゴが設定されていません",
	})
}
