package database

import (
	"log"

	"gorm.io/gorm"

	"github.com/LVQT-ss/SHOPC-sub000/config"
	"github.com/LVQT-ss/SHOPC-sub000/internal/models"
	"github.com/LVQT-ss/SHOPC-sub000/internal/utils"
)

func SeedRolesAndAdmin() {
	// Seed Roles
	roles := []string{models.RoleAdmin, models.RoleManager, models.RoleStaff, models.RoleCustomer}
	for _, r := range roles {
		var role models.Role
		if err := DB.FirstOrCreate(&role, models.Role{Name: r}).Error; err != nil {
			log.Printf("Failed to seed role %s: %v", r, err)
		}
	}

	if config.AppConfig.Defaults.AdminUsername == "" {
		return
	}

	// Seed Admin User
	var adminRole models.Role
	DB.Where("name = ?", models.RoleAdmin).First(&adminRole)

	var adminUser models.User
	if err := DB.Where("username = ?", config.AppConfig.Defaults.AdminUsername).First(&adminUser).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			hashedPassword, _ := utils.HashPassword(config.AppConfig.Defaults.AdminPassword)
			admin := models.User{
				Username:     config.AppConfig.Defaults.AdminUsername,
				Email:        config.AppConfig.Defaults.AdminEmail,
				PasswordHash: hashedPassword,
				RoleID:       adminRole.ID,
				IsActive:     true,
			}
			if err := DB.Create(&admin).Error; err != nil {
				log.Printf("Failed to seed admin user: %v", err)
			} else {
				log.Println("Admin user seeded successfully.")
			}
		}
	}
}
