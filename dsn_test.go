package mysql

import (
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"
)

func Test_parseDsn(t *testing.T) {
	convey.Convey("parses path and query sections independently", t, func() {
		convey.Convey("a minimal tcp DSN fills in query defaults", func() {
			cfg, err := parseDsn("name:1234@tcp(127.0.0.1:3306)/world")
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.user, convey.ShouldEqual, "name")
			convey.So(cfg.password, convey.ShouldEqual, "1234")
			convey.So(cfg.protocol, convey.ShouldEqual, "tcp")
			convey.So(cfg.port, convey.ShouldEqual, uint16(3306))
			convey.So(cfg.dbName, convey.ShouldEqual, "world")
			convey.So(cfg.charset, convey.ShouldEqual, "utf8mb4")
			convey.So(cfg.allowNativePasswords, convey.ShouldBeTrue)
		})

		convey.Convey("a missing user field is an error", func() {
			_, err := parseDsn("1234@tcp(127.0.0.1:3306)/world")
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("an invalid port is an error", func() {
			_, err := parseDsn("name:1234@tcp(127.0.0.1:notaport)/world")
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("query options override the defaults", func() {
			cfg, err := parseDsn("name:1234@tcp(127.0.0.1:3306)/world?charset=ascii&parseTime=false&timeout=2s&local_infile=true")
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.charset, convey.ShouldEqual, "ascii")
			convey.So(cfg.parseTime, convey.ShouldBeFalse)
			convey.So(cfg.timeout, convey.ShouldEqual, 2*time.Second)
			convey.So(cfg.allowLocalInfile, convey.ShouldBeTrue)
		})

		convey.Convey("an unknown query key is rejected", func() {
			_, err := parseDsn("name:1234@tcp(127.0.0.1:3306)/world?bogus=1")
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("an unknown charset is rejected", func() {
			_, err := parseDsn("name:1234@tcp(127.0.0.1:3306)/world?charset=klingon")
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("init_command is URL-decoded into the init command list", func() {
			cfg, err := parseDsn("name:1234@tcp(127.0.0.1:3306)/world?init_command=SET+time_zone%3D%27%2B00%3A00%27")
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.initCommands, convey.ShouldResemble, []string{"SET time_zone='+00:00'"})
		})

		convey.Convey("read_timeout, write_timeout and reconnect use their documented keys", func() {
			cfg, err := parseDsn("name:1234@tcp(127.0.0.1:3306)/world?read_timeout=5s&write_timeout=3s&reconnect=true")
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.readTimeout, convey.ShouldEqual, 5*time.Second)
			convey.So(cfg.writeTimeout, convey.ShouldEqual, 3*time.Second)
			convey.So(cfg.reconnect, convey.ShouldBeTrue)
		})

		convey.Convey("the camelCase timeout spellings still work", func() {
			cfg, err := parseDsn("name:1234@tcp(127.0.0.1:3306)/world?readTimeout=1s&writeTimeout=1s")
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.readTimeout, convey.ShouldEqual, time.Second)
			convey.So(cfg.writeTimeout, convey.ShouldEqual, time.Second)
		})
	})
}
