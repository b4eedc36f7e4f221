package dal

import (
	"EngageHub.com/cmd/interaction/dal/db"
)

func Init() {
	db.Init()
}
