// =============================================================================
// 📦 测试数据工厂 - 迁移脚本
// =============================================================================
// 在临时目录下铺设迁移脚本树，用于端到端测试
// =============================================================================
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// 预定义的示例脚本
const (
	CreatePostsSQL = `CREATE TABLE posts (
	id INTEGER PRIMARY KEY,
	title TEXT NOT NULL
);`

	DropPostsSQL = `DROP TABLE posts;`

	AddPostsIndexSQL = `CREATE INDEX idx_posts_title ON posts (title);`

	DropPostsIndexSQL = `DROP INDEX idx_posts_title;`
)

// WriteMigrationFile 在迁移目录下写入单个脚本文件
func WriteMigrationFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("create migration dir %q: %v", dir, err)
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write migration file %q: %v", path, err)
	}
	return path
}

// WriteSQLPair 写入一对 up/down 脚本，返回迁移目录
func WriteSQLPair(t *testing.T, dir, stem, upSQL, downSQL string) {
	t.Helper()

	WriteMigrationFile(t, dir, stem+".sql", upSQL)
	if downSQL != "" {
		WriteMigrationFile(t, dir, stem+".down.sql", downSQL)
	}
}

// SeedPostsMigrations 铺设建表加索引两步迁移，返回各自的版本号
func SeedPostsMigrations(t *testing.T, dir string) (createVersion, indexVersion string) {
	t.Helper()

	WriteSQLPair(t, dir, "2012-10-31-100537_create_posts", CreatePostsSQL, DropPostsSQL)
	WriteSQLPair(t, dir, "2012-11-01-000000_add_posts_index", AddPostsIndexSQL, DropPostsIndexSQL)
	return "20121031100537", "20121101000000"
}
