package db

import (
	"EngageHub.com/cmd/model"
	"EngageHub.com/pkg/utils"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/pkg/errors"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormopentracing "gorm.io/plugin/opentracing"
)

var DB *gorm.DB

// Init init DB
func Init() {
	var err error
	dsn := utils.GetMysqlDsn()
	DB, err = gorm.Open(mysql.Open(dsn),
		&gorm.Config{
			PrepareStmt:            true,
			SkipDefaultTransaction: true,
		},
	)
	if err != nil {
		panic(errors.Wrap(err, "failed to connect mysql"))
	}
	if err = DB.Use(gormopentracing.New()); err != nil {
		panic(errors.Wrap(err, "failed to install gorm tracing plugin"))
	}

	if err = migrateInteractionTables(); err != nil {
		panic(err)
	}
}

func migrateInteractionTables() error {
	hlog.Info("Starting interaction tables migration...")

	if err := model.AutoMigrateInteractionTables(DB); err != nil {
		hlog.Errorf("Failed to migrate interaction tables: %v", err)
		return err
	}

	hlog.Info("Interaction tables migration completed successfully")
	return nil
}
