package database

const mysqlSchema = `
CREATE TABLE IF NOT EXISTS users (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    email VARCHAR(255) NOT NULL UNIQUE,
    password_hash VARCHAR(255) NOT NULL,
    name VARCHAR(255) NOT NULL,
    birth_date VARCHAR(10),
    birth_time VARCHAR(5),
    city VARCHAR(255),
    gender VARCHAR(16),
    coins INT NOT NULL DEFAULT 0,
    total_coins_earned INT NOT NULL DEFAULT 0,
    total_coins_spent INT NOT NULL DEFAULT 0,
    last_daily_bonus DATETIME(6) NULL,
    last_bonus_day CHAR(10) NULL,
    notify_fortune_ready BOOLEAN NOT NULL DEFAULT TRUE,
    notify_daily_bonus BOOLEAN NOT NULL DEFAULT TRUE,
    notify_admin_messages BOOLEAN NOT NULL DEFAULT TRUE,
    created_at DATETIME(6) NOT NULL,
    updated_at DATETIME(6) NOT NULL,
    CONSTRAINT chk_users_coins CHECK (coins >= 0)
);

CREATE TABLE IF NOT EXISTS fortunes (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    user_id BIGINT NOT NULL,
    fortune_type VARCHAR(16) NOT NULL,
    teller_id VARCHAR(64) NOT NULL,
    teller_name VARCHAR(255) NOT NULL,
    cost INT NOT NULL,
    fortune_text MEDIUMTEXT NOT NULL,
    image_urls TEXT,
    metadata TEXT,
    reservation_id VARCHAR(64) NOT NULL UNIQUE,
    created_at DATETIME(6) NOT NULL,
    KEY idx_fortunes_user (user_id, id),
    KEY idx_fortunes_created (created_at),
    FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS coin_transactions (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    user_id BIGINT NOT NULL,
    tx_type VARCHAR(32) NOT NULL,
    amount INT NOT NULL,
    reference VARCHAR(128) NOT NULL UNIQUE,
    created_at DATETIME(6) NOT NULL,
    KEY idx_coin_transactions_user (user_id, id),
    FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS notifications (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    user_id BIGINT NOT NULL,
    type VARCHAR(32) NOT NULL,
    title VARCHAR(255) NOT NULL,
    message TEXT NOT NULL,
    link VARCHAR(512),
    is_read BOOLEAN NOT NULL DEFAULT FALSE,
    created_at DATETIME(6) NOT NULL,
    KEY idx_notifications_user (user_id, id),
    FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS admins (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    username VARCHAR(64) NOT NULL UNIQUE,
    password_hash VARCHAR(255) NOT NULL,
    created_at DATETIME(6) NOT NULL
);
`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    email TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    name TEXT NOT NULL,
    birth_date TEXT,
    birth_time TEXT,
    city TEXT,
    gender TEXT,
    coins INTEGER NOT NULL DEFAULT 0 CHECK (coins >= 0),
    total_coins_earned INTEGER NOT NULL DEFAULT 0,
    total_coins_spent INTEGER NOT NULL DEFAULT 0,
    last_daily_bonus DATETIME,
    last_bonus_day TEXT,
    notify_fortune_ready BOOLEAN NOT NULL DEFAULT 1,
    notify_daily_bonus BOOLEAN NOT NULL DEFAULT 1,
    notify_admin_messages BOOLEAN NOT NULL DEFAULT 1,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS fortunes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    fortune_type TEXT NOT NULL,
    teller_id TEXT NOT NULL,
    teller_name TEXT NOT NULL,
    cost INTEGER NOT NULL,
    fortune_text TEXT NOT NULL,
    image_urls TEXT,
    metadata TEXT,
    reservation_id TEXT NOT NULL UNIQUE,
    created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fortunes_user ON fortunes (user_id, id);

CREATE INDEX IF NOT EXISTS idx_fortunes_created ON fortunes (created_at);

CREATE TABLE IF NOT EXISTS coin_transactions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    tx_type TEXT NOT NULL,
    amount INTEGER NOT NULL,
    reference TEXT NOT NULL UNIQUE,
    created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_coin_transactions_user ON coin_transactions (user_id, id);

CREATE TABLE IF NOT EXISTS notifications (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    type TEXT NOT NULL,
    title TEXT NOT NULL,
    message TEXT NOT NULL,
    link TEXT,
    is_read BOOLEAN NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications (user_id, id);

CREATE TABLE IF NOT EXISTS admins (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    username TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    created_at DATETIME NOT NULL
);
`
