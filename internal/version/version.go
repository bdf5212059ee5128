// 包 version：构建期注入的版本信息（-ldflags "-X paman-dede/internal/version.Commit=..."）
package version

var (
	Commit  = "dev"
	Version = "0.0.0"
)
