// 包 config：集中读取环境变量并提供默认值；.env 由入口通过 godotenv 预先加载
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config：服务运行参数
// 背景：原先散落在入口处的 os.Getenv 调用集中于此，便于测试与复用到命令行工具
type Config struct {
	Addr      string
	APIBase   string
	PublicDir string

	SheetURL      string
	SheetTimeout  time.Duration
	SheetCacheTTL time.Duration

	// 以原始文本保存，/api/config 按请求解析；格式错误只影响该端点
	YearsRaw     string
	MapBoundsRaw string
	DesaIDsRaw   string

	GeoJSONDir          string
	BoundaryConcurrency int
	BoundaryWatch       bool
	// >0 时按旧版编号文件 1..N 额外加载统一边界图层
	BoundaryNumbered int

	PlaceSource   string
	PlaceDataPath string
	VillagesFile  string

	RefreshInterval time.Duration
	FlashTTL        time.Duration

	AdminToken       string
	AdminAllow       []string
	CORSOrigins      []string
	CSPConnectSrc    []string
	RateLimitEnabled bool
	RateLimitQPS     int

	TLSEnable   bool
	TLSCertPath string
	TLSKeyPath  string

	RedisEnabled bool
}

// Load：读取环境变量构建配置
// 约束：数值解析失败时回退默认值，不报错
func Load() *Config {
	return &Config{
		Addr:                getEnvWithDefault("ADDR", ":"+getEnvWithDefault("PORT", "3000")),
		APIBase:             getEnvWithDefault("API_BASE", "/api"),
		PublicDir:           getEnvWithDefault("PUBLIC_DIR", "public"),
		SheetURL:            os.Getenv("SHEET_URL"),
		SheetTimeout:        time.Duration(getEnvAsInt("SHEET_TIMEOUT_S", 10)) * time.Second,
		SheetCacheTTL:       time.Duration(getEnvAsInt("SHEET_CACHE_TTL_S", 300)) * time.Second,
		YearsRaw:            os.Getenv("YEARS"),
		MapBoundsRaw:        os.Getenv("MAP_BOUNDS"),
		DesaIDsRaw:          os.Getenv("DESA_IDS"),
		GeoJSONDir:          getEnvWithDefault("GEOJSON_DIR", filepath.Join("data", "geojson")),
		BoundaryConcurrency: getEnvAsInt("BOUNDARY_CONCURRENCY", 8),
		BoundaryWatch:       getEnvAsBool("BOUNDARY_WATCH", true),
		BoundaryNumbered:    getEnvAsInt("BOUNDARY_NUMBERED", 0),
		PlaceSource:         strings.ToLower(getEnvWithDefault("PLACE_SOURCE", "file")),
		PlaceDataPath:       getEnvWithDefault("PLACE_DATA_PATH", filepath.Join("data", "place-data.xlsx")),
		VillagesFile:        os.Getenv("VILLAGES_FILE"),
		RefreshInterval:     time.Duration(getEnvAsInt("REFRESH_INTERVAL_S", 0)) * time.Second,
		FlashTTL:            time.Duration(getEnvAsInt("FLASH_TTL_S", 5)) * time.Second,
		AdminToken:          os.Getenv("ADMIN_TOKEN"),
		AdminAllow:          SplitList(os.Getenv("ADMIN_ALLOW_CIDRS")),
		CORSOrigins:         SplitList(getEnvWithDefault("CORS_ORIGINS", "*")),
		CSPConnectSrc:       SplitList(os.Getenv("CSP_CONNECT_SRC")),
		RateLimitEnabled:    getEnvAsBool("RATE_LIMIT_ENABLED", false),
		RateLimitQPS:        getEnvAsInt("RATE_LIMIT_QPS", 200),
		TLSEnable:           getEnvAsBool("TLS_ENABLE", false),
		TLSCertPath:         getEnvWithDefault("TLS_CERT_PATH", filepath.Join("data", "certs", "server.crt")),
		TLSKeyPath:          getEnvWithDefault("TLS_KEY_PATH", filepath.Join("data", "certs", "server.key")),
		RedisEnabled:        getEnvAsBool("REDIS_ENABLED", false),
	}
}

// MapConfig：按当前环境构建对外配置
func (c *Config) MapConfig() (*MapConfig, error) {
	return ParseMapConfig(c.YearsRaw, c.MapBoundsRaw, c.DesaIDsRaw)
}

// SplitList：逗号分隔列表，去除空白与空项
func SplitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n >= 0 {
			return n
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
