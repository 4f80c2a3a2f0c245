package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	monthlyFolder   = "月次営業分析レポート"
	allPeriodFolder = "インサイドセールス分析データ"
)

// writeCSVSource writes a small four-table dataset spanning two months.
func writeCSVSource(t *testing.T, dir string) {
	t.Helper()
	data := filepath.Join(dir, "data")
	require.NoError(t, os.MkdirAll(data, 0o755))

	files := map[string]string{
		"roster.csv": "No,名前,入社日,支部\n" +
			"1,佐藤,2024/4/1,東京\n" +
			"2,鈴木,2024/8/1,大阪\n",
		"deals.csv": "作成日時,商談開始日時,パートナー担当者,メーカー名,プロダクト名,報酬,商談ステータス,法人番号,会社名,却下理由\n" +
			"2024/9/10 10:00:00,2024/9/20 13:00:00,佐藤,Sansan,Bill One,15000,承認,123,ACME,\n" +
			"2024/10/8 10:00:00,2024/10/15 13:00:00,鈴木,Sansan,Contract One,,却下,456,Globex,予算なし\n",
		"rejections.csv": "発生年月,会社名,プロダクト,理由,却下理由\n",
		"activity.csv": ",,メイン商材,,,\n" +
			"今日の日付,名前,新規架電：メイン商材,総荷電時間(単位は●時間),架電数　※半角で入力,アポ獲得　※半角で入力\n" +
			"2024/9/10,佐藤,Bill One,3,20,1\n" +
			"2024/9/11,佐藤,Bill One,2,15,0\n" +
			"2024/10/8,鈴木,Contract One,4,30,2\n" +
			"2024/10/9,佐藤,Bill One,1,8,0\n",
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(data, name), []byte(body), 0o644))
	}
}

func runIDFrom(t *testing.T, out string) string {
	t.Helper()
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "Run:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "Run:"))
		}
	}
	t.Fatalf("no run id in output:\n%s", out)
	return ""
}

func TestAnalyze_AllMonthsEndToEnd(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "")
	writeCSVSource(t, dir)

	out, err := executeCommand(t, dir, "analyze", "--all-months")
	require.NoError(t, err, out)
	assert.Contains(t, out, "complete")
	assert.Contains(t, out, "2024-09, 2024-10")

	for _, rel := range []string{
		filepath.Join(allPeriodFolder, "sales_analysis_data.json"),
		filepath.Join(allPeriodFolder, "staff_retention_analysis.json"),
		filepath.Join(allPeriodFolder, "merged_sales_data.json"),
		filepath.Join(monthlyFolder, "月次サマリー_2024-09.json"),
		filepath.Join(monthlyFolder, "月次サマリー_2024-10.json"),
		filepath.Join(monthlyFolder, "実行ログ_2024-10.json"),
		filepath.Join(monthlyFolder, "detailed_sales_analysis_2024-10.json"),
	} {
		assert.FileExists(t, filepath.Join(dir, "out", rel))
	}

	id := runIDFrom(t, out)

	out, err = executeCommand(t, dir, "runs", "list")
	require.NoError(t, err)
	assert.Contains(t, out, truncateID(id))
	assert.Contains(t, out, "all")
	assert.Contains(t, out, "complete")

	out, err = executeCommand(t, dir, "runs", "show", id)
	require.NoError(t, err)
	assert.Contains(t, out, `"phase_records"`)
	assert.Contains(t, out, `"write:`+monthlyFolder+`/月次サマリー_2024-09.json"`)

	out, err = executeCommand(t, dir, "runs", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Complete:")
}

func TestAnalyze_MissingPeriodFails(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "")
	writeCSVSource(t, dir)

	out, err := executeCommand(t, dir, "analyze", "--period", "2023-01")
	require.Error(t, err)
	assert.Contains(t, out, "failed")

	out, err = executeCommand(t, dir, "runs", "list", "--status", "failed")
	require.NoError(t, err)
	assert.Contains(t, out, "2023-01")
}

func TestAnalyze_BadPeriodFormat(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "")

	_, err := executeCommand(t, dir, "analyze", "--period", "October")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "YYYY-MM")
}

func TestAnalyze_MissingSourceFails(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "")

	_, err := executeCommand(t, dir, "retention")
	require.Error(t, err)
	assert.NoDirExists(t, filepath.Join(dir, "out"))
}

func TestMerge_WritesMergedView(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "")
	writeCSVSource(t, dir)

	_, err := executeCommand(t, dir, "merge")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "out", allPeriodFolder, "merged_sales_data.json"))
	assert.NoFileExists(t, filepath.Join(dir, "out", allPeriodFolder, "sales_analysis_data.json"))
}
